package convert

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/math"
	"github.com/Faultbox/assetpak/pkg/skelanim"
)

// ErrSkeletonMissing reports that the unified skeleton could not be resolved after it was built.
var ErrSkeletonMissing = errors.New("unified skeleton missing after build")

// UnifiedSkeleton merges every skin and every promoted animated node into one hierarchy. It
// only lives for the duration of a conversion.
type UnifiedSkeleton struct {
	Handle  asset.SkeletonHandle
	Runtime *skelanim.Skeleton

	// Joints is the joint-eligible set of source nodes, closed under ancestor-of.
	Joints map[int]bool
	// Globals holds the world transform of every source node.
	Globals []math.Mat4

	NodeToJoint map[int]int
	JointToNode []int // -1 when no source node matched

	InverseBinds []math.Mat4 // per joint
	// SkinProvided marks joints whose inverse bind came from a skin.
	SkinProvided []bool

	// Attachments are promoted animation targets that no skin lists.
	Attachments map[int]bool
	// NameOverrides rename source nodes whose names would collide.
	NameOverrides map[int]string
}

// Joint returns the unified joint index of a source node.
func (u *UnifiedSkeleton) Joint(node int) (int, bool) {
	if u == nil {
		return 0, false
	}
	j, ok := u.NodeToJoint[node]
	return j, ok
}

// NumJoints returns the number of joints in the built skeleton.
func (u *UnifiedSkeleton) NumJoints() int { return len(u.JointToNode) }

// computeGlobals returns the world transform of every node. Parents are visited before their
// children; nodes unreachable from a root keep their local transform.
func computeGlobals(doc *document.Document, parents []int) []math.Mat4 {
	globals := make([]math.Mat4, len(doc.Nodes))
	visited := make([]bool, len(doc.Nodes))
	var stack []int
	for i := len(parents) - 1; i >= 0; i-- {
		if parents[i] < 0 {
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		local := doc.Nodes[n].LocalMatrix()
		if pi := parents[n]; pi >= 0 {
			globals[n] = globals[pi].Mul(local)
		} else {
			globals[n] = local
		}
		children := doc.Nodes[n].Children
		for i := len(children) - 1; i >= 0; i-- {
			if c := children[i]; c >= 0 && c < len(parents) && parents[c] == n && !visited[c] {
				stack = append(stack, c)
			}
		}
	}
	for i := range globals {
		if !visited[i] {
			globals[i] = doc.Nodes[i].LocalMatrix()
		}
	}
	return globals
}

func hostsCameraOrLight(n *document.Node) bool { return n.Camera >= 0 || n.Light >= 0 }

// collectJoints gathers skin joints and promoted animation targets, then closes the set under
// ancestor-of.
func (p *pipeline) collectJoints(u *UnifiedSkeleton) {
	skinMembers := make(map[int]bool)
	for si := range p.doc.Skins {
		skin := &p.doc.Skins[si]
		for k, j := range skin.Joints {
			if !p.validNode(j) {
				p.warn("skin %d joint %d references node %d out of range, skipped", si, k, j)
				continue
			}
			skinMembers[j] = true
			u.Joints[j] = true
		}
	}

	if p.opts.PromoteAnimatedNodes && p.opts.ImportAnimations {
		for ai := range p.doc.Animations {
			for _, ch := range p.doc.Animations[ai].Channels {
				if ch.Path == document.PathWeights || !p.validNode(ch.Node) || u.Joints[ch.Node] {
					continue
				}
				if hostsCameraOrLight(&p.doc.Nodes[ch.Node]) {
					continue
				}
				u.Joints[ch.Node] = true
				if !skinMembers[ch.Node] {
					u.Attachments[ch.Node] = true
				}
			}
		}
	}

	for _, n := range slices.Sorted(maps.Keys(u.Joints)) {
		for a := p.parents[n]; a >= 0 && !u.Joints[a]; a = p.parents[a] {
			u.Joints[a] = true
		}
	}
}

// jointName returns the name the skeleton uses for a source node.
func (u *UnifiedSkeleton) jointName(doc *document.Document, node int) string {
	if name, ok := u.NameOverrides[node]; ok {
		return name
	}
	if name := doc.Nodes[node].Name; name != "" {
		return norm.NFC.String(name)
	}
	return fmt.Sprintf("joint_%d", node)
}

// assignNames overrides names that collide so every joint name is unique.
func (u *UnifiedSkeleton) assignNames(doc *document.Document, nodes []int) {
	used := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		name := u.jointName(doc, n)
		if used[name] {
			candidate := fmt.Sprintf("%s_%d", name, n)
			for i := 1; used[candidate]; i++ {
				candidate = fmt.Sprintf("%s_%d_%d", name, n, i)
			}
			name = candidate
			u.NameOverrides[n] = name
		}
		used[name] = true
	}
}

// rawSkeleton emits the joint hierarchy depth first without recursion. Roots are joints
// whose parent is not a joint.
func (p *pipeline) rawSkeleton(u *UnifiedSkeleton, nodes []int) *skelanim.RawSkeleton {
	var roots []int
	for _, n := range nodes {
		if pi := p.parents[n]; pi < 0 || !u.Joints[pi] {
			roots = append(roots, n)
		}
	}

	jointChildren := func(n int) []int {
		var out []int
		for _, c := range p.doc.Nodes[n].Children {
			if c >= 0 && c < len(p.parents) && p.parents[c] == n && u.Joints[c] {
				out = append(out, c)
			}
		}
		return out
	}

	// Preorder, then assemble bottom-up so every child is complete before its parent.
	var order []int
	stack := slices.Clone(roots)
	slices.Reverse(stack)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, n)
		children := jointChildren(n)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	built := make(map[int]skelanim.RawJoint, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		t, r, s := p.doc.Nodes[n].LocalTRS()
		j := skelanim.RawJoint{
			Name:      u.jointName(p.doc, n),
			Transform: skelanim.Transform{Translation: t, Rotation: r, Scale: s},
		}
		for _, c := range jointChildren(n) {
			j.Children = append(j.Children, built[c])
		}
		built[n] = j
	}

	raw := &skelanim.RawSkeleton{}
	for _, r := range roots {
		raw.Roots = append(raw.Roots, built[r])
	}
	return raw
}

// unifySkeleton builds the single skeleton of the asset. Documents without skins keep all
// their animation on nodes and get no skeleton.
func (p *pipeline) unifySkeleton() error {
	if len(p.doc.Skins) == 0 {
		return nil
	}

	u := &UnifiedSkeleton{
		Joints:        make(map[int]bool),
		NodeToJoint:   make(map[int]int),
		Attachments:   make(map[int]bool),
		NameOverrides: make(map[int]string),
	}
	p.collectJoints(u)
	if len(u.Joints) == 0 {
		p.warn("skins reference no valid joints, no skeleton built")
		return nil
	}
	u.Globals = computeGlobals(p.doc, p.parents)

	nodes := slices.Sorted(maps.Keys(u.Joints))
	u.assignNames(p.doc, nodes)

	runtime, err := p.builder.BuildSkeleton(p.rawSkeleton(u, nodes))
	if err != nil {
		return fmt.Errorf("unify skeleton: %w", err)
	}

	name := p.doc.Skins[0].Name
	if name == "" {
		name = "skeleton"
	}
	u.Handle = p.out.AddSkeleton(&asset.SkeletonData{Name: name, Runtime: runtime})
	data, err := p.out.Skeleton(u.Handle)
	if err != nil || data.Runtime == nil {
		return fmt.Errorf("%w: %v", ErrSkeletonMissing, err)
	}
	u.Runtime = data.Runtime

	// The builder decides joint order; match its names back to source nodes.
	byName := make(map[string]int, len(nodes))
	for _, n := range nodes {
		byName[u.jointName(p.doc, n)] = n
	}
	u.JointToNode = make([]int, u.Runtime.NumJoints())
	for j, name := range u.Runtime.JointNames() {
		n, ok := byName[norm.NFC.String(name)]
		if !ok {
			p.warn("skeleton joint %q has no source node", name)
			u.JointToNode[j] = -1
			continue
		}
		u.JointToNode[j] = n
		u.NodeToJoint[n] = j
	}
	for _, n := range nodes {
		if _, ok := u.NodeToJoint[n]; !ok {
			p.warn("node %d (%s) missing from skeleton joint mapping", n, p.nodeName(n))
		}
	}

	if err := p.resolveInverseBinds(u); err != nil {
		return err
	}

	p.skeleton = u
	p.log.Info("skeleton unified",
		zap.Int("joints", u.NumJoints()),
		zap.Int("attachments", len(u.Attachments)),
		zap.Int("skins", len(p.doc.Skins)))
	return nil
}

// resolveInverseBinds takes each joint's inverse bind from the first skin that provides one
// and falls back to the inverse of the node's world transform.
func (p *pipeline) resolveInverseBinds(u *UnifiedSkeleton) error {
	u.InverseBinds = make([]math.Mat4, u.NumJoints())
	u.SkinProvided = make([]bool, u.NumJoints())

	for si := range p.doc.Skins {
		skin := &p.doc.Skins[si]
		if skin.InverseBindMatrices < 0 {
			continue
		}
		mats, err := p.doc.ReadMat4(skin.InverseBindMatrices)
		if err != nil {
			return fmt.Errorf("skin %d inverse bind matrices: %w", si, err)
		}
		if len(mats) < len(skin.Joints) {
			p.warn("skin %d has %d inverse bind matrices for %d joints", si, len(mats), len(skin.Joints))
		}
		for k, node := range skin.Joints {
			if k >= len(mats) {
				break
			}
			j, ok := u.NodeToJoint[node]
			if !ok || u.SkinProvided[j] {
				continue
			}
			u.InverseBinds[j] = mats[k]
			u.SkinProvided[j] = true
		}
	}

	for j, node := range u.JointToNode {
		if u.SkinProvided[j] {
			continue
		}
		if node < 0 {
			u.InverseBinds[j] = math.Identity()
			continue
		}
		u.InverseBinds[j] = u.Globals[node].Inverse()
	}
	return nil
}
