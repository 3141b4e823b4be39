// Package skelanim implements the runtime skeleton and compressed animation objects the asset
// pipeline hands its joint hierarchies and tracks to. Objects are built from raw descriptions,
// validated on build, and archived in their own versioned binary format.
package skelanim

import (
	"errors"
	"fmt"

	"github.com/Faultbox/assetpak/pkg/math"
)

// MaxJoints is the largest skeleton the runtime accepts.
const MaxJoints = 1024

var (
	ErrEmptySkeleton      = errors.New("skeleton has no joints")
	ErrTooManyJoints      = errors.New("skeleton exceeds joint limit")
	ErrEmptyJointName     = errors.New("joint name is empty")
	ErrDuplicateJointName = errors.New("duplicate joint name")
)

// Transform is a joint-local translation, rotation and scale.
type Transform struct {
	Translation math.Vec3
	Rotation    math.Quat
	Scale       math.Vec3
}

// IdentityTransform returns the identity transform.
func IdentityTransform() Transform {
	return Transform{Rotation: math.QuatIdentity(), Scale: math.Vec3{X: 1, Y: 1, Z: 1}}
}

// RawJoint is one joint of a raw hierarchy.
type RawJoint struct {
	Name      string
	Transform Transform
	Children  []RawJoint
}

// RawSkeleton is an editable joint hierarchy.
type RawSkeleton struct {
	Roots []RawJoint
}

// NumJoints counts every joint in the hierarchy.
func (r *RawSkeleton) NumJoints() int {
	n := 0
	r.walk(func(*RawJoint, int) { n++ })
	return n
}

// walk visits joints depth first, parents before children, siblings in order.
// parent is the visit index of the parent joint, or -1 for roots.
func (r *RawSkeleton) walk(fn func(j *RawJoint, parent int)) {
	type item struct {
		joint  *RawJoint
		parent int
	}
	stack := make([]item, 0, len(r.Roots))
	for i := len(r.Roots) - 1; i >= 0; i-- {
		stack = append(stack, item{&r.Roots[i], -1})
	}
	visited := 0
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(it.joint, it.parent)
		self := visited
		visited++
		for i := len(it.joint.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{&it.joint.Children[i], self})
		}
	}
}

// Skeleton is a compact, immutable joint hierarchy in depth-first order.
type Skeleton struct {
	names   []string
	parents []int16
	bind    []Transform
}

// BuildSkeleton validates a raw hierarchy and lays it out depth first.
func BuildSkeleton(raw *RawSkeleton) (*Skeleton, error) {
	if raw == nil {
		return nil, ErrEmptySkeleton
	}
	n := raw.NumJoints()
	switch {
	case n == 0:
		return nil, ErrEmptySkeleton
	case n > MaxJoints:
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyJoints, n, MaxJoints)
	}

	s := &Skeleton{
		names:   make([]string, 0, n),
		parents: make([]int16, 0, n),
		bind:    make([]Transform, 0, n),
	}
	seen := make(map[string]int, n)
	var err error
	raw.walk(func(j *RawJoint, parent int) {
		if err != nil {
			return
		}
		idx := len(s.names)
		if j.Name == "" {
			err = fmt.Errorf("%w: joint %d", ErrEmptyJointName, idx)
			return
		}
		if prev, ok := seen[j.Name]; ok {
			err = fmt.Errorf("%w: %q at %d and %d", ErrDuplicateJointName, j.Name, prev, idx)
			return
		}
		seen[j.Name] = idx
		s.names = append(s.names, j.Name)
		s.parents = append(s.parents, int16(parent))
		s.bind = append(s.bind, j.Transform)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NumJoints returns the joint count.
func (s *Skeleton) NumJoints() int { return len(s.names) }

// JointNames returns joint names in skeleton order.
func (s *Skeleton) JointNames() []string { return s.names }

// Parent returns the parent joint index, or -1 for a root.
func (s *Skeleton) Parent(joint int) int { return int(s.parents[joint]) }

// BindPose returns the rest-pose local transform of a joint.
func (s *Skeleton) BindPose(joint int) Transform { return s.bind[joint] }

// JointIndex returns the index of the named joint, or -1.
func (s *Skeleton) JointIndex(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}
