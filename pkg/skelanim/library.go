package skelanim

// Library exposes the builders and archive codecs as a value, so callers can depend on a
// narrow interface instead of package functions.
type Library struct{}

// BuildSkeleton builds a runtime skeleton.
func (Library) BuildSkeleton(raw *RawSkeleton) (*Skeleton, error) {
	return BuildSkeleton(raw)
}

// BuildAnimation builds a runtime animation for a skeleton of numJoints joints.
func (Library) BuildAnimation(raw *RawAnimation, numJoints int) (*Animation, error) {
	return BuildAnimation(raw, numJoints)
}

// MarshalSkeleton archives a skeleton.
func (Library) MarshalSkeleton(s *Skeleton) ([]byte, error) {
	return s.MarshalBinary()
}

// UnmarshalSkeleton restores a skeleton from its archive.
func (Library) UnmarshalSkeleton(data []byte) (*Skeleton, error) {
	s := new(Skeleton)
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalAnimation archives an animation.
func (Library) MarshalAnimation(a *Animation) ([]byte, error) {
	return a.MarshalBinary()
}

// UnmarshalAnimation restores an animation from its archive.
func (Library) UnmarshalAnimation(data []byte) (*Animation, error) {
	a := new(Animation)
	if err := a.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return a, nil
}
