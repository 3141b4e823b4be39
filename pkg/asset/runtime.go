package asset

import "github.com/Faultbox/assetpak/pkg/skelanim"

// Runtime archives and restores the skeleton and animation objects the container embeds as
// opaque blobs.
type Runtime interface {
	MarshalSkeleton(s *skelanim.Skeleton) ([]byte, error)
	UnmarshalSkeleton(data []byte) (*skelanim.Skeleton, error)
	MarshalAnimation(a *skelanim.Animation) ([]byte, error)
	UnmarshalAnimation(data []byte) (*skelanim.Animation, error)
}
