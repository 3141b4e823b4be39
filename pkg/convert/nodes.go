package convert

import (
	"maps"
	"slices"

	"github.com/Faultbox/assetpak/pkg/asset"
)

// processNodes emits the node forest reachable from the scene roots in depth-first order,
// then rekeys node animation tracks to the emitted indices.
func (p *pipeline) processNodes() {
	roots := p.doc.RootNodes()
	index := make(map[int]int, len(p.doc.Nodes))
	p.scene = index

	type item struct{ node, parent int }
	stack := make([]item, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, item{roots[i], -1})
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := index[it.node]; seen {
			p.warn("node %d reached twice in the scene graph, later instance dropped", it.node)
			continue
		}

		src := &p.doc.Nodes[it.node]
		t, r, s := src.LocalTRS()
		out := asset.SceneNode{
			Name:            p.nodeName(it.node),
			Parent:          int32(it.parent),
			Translation:     t,
			Rotation:        r,
			Scale:           s,
			Camera:          int32(src.Camera),
			Light:           int32(src.Light),
			Joint:           -1,
			AnimationTarget: p.animated[it.node],
		}
		if src.Mesh >= 0 && src.Mesh < len(p.meshes) {
			out.Mesh = p.meshes[src.Mesh]
			if m, ok := p.out.Meshes[out.Mesh]; ok {
				out.Skeleton = m.Skeleton
			}
		}
		if j, ok := p.skeleton.Joint(it.node); ok {
			out.Joint = int32(j)
		}
		if src.Skin >= 0 && p.skeleton != nil {
			out.Skeleton = p.skeleton.Handle
		}

		self := len(p.out.Nodes)
		index[it.node] = self
		p.out.Nodes = append(p.out.Nodes, out)
		if it.parent < 0 {
			p.out.Roots = append(p.out.Roots, uint32(self))
		} else {
			p.out.Nodes[it.parent].Children = append(p.out.Nodes[it.parent].Children, uint32(self))
		}

		children := slices.Clone(src.Children)
		slices.Reverse(children)
		for _, c := range children {
			if p.validNode(c) && p.parents[c] == it.node {
				stack = append(stack, item{c, self})
			}
		}
	}
	p.remapNodeTracks()
}

// remapNodeTracks rekeys node tracks and animation targets from document node indices to
// scene node indices. Tracks of nodes outside the scene are dropped.
func (p *pipeline) remapNodeTracks() {
	for _, h := range p.out.AnimationHandles() {
		anim := p.out.Animations[h]
		if len(anim.NodeTracks) == 0 {
			continue
		}

		tracks := make(map[int]*asset.NodeTransformData, len(anim.NodeTracks))
		for _, node := range slices.Sorted(maps.Keys(anim.NodeTracks)) {
			dst, ok := p.scene[node]
			if !ok {
				p.warn("animation %q: node %d (%s) is not in the scene, track dropped", anim.Name, node, p.nodeName(node))
				continue
			}
			tracks[dst] = anim.NodeTracks[node]
		}
		if anim.TargetNode >= 0 {
			if dst, ok := p.scene[int(anim.TargetNode)]; ok {
				anim.TargetNode = int32(dst)
			} else {
				anim.TargetNode = -1
				anim.TargetMesh = asset.MeshHandle{}
			}
		}

		if len(tracks) > 0 {
			anim.NodeTracks = tracks
			continue
		}
		anim.NodeTracks = nil
		if anim.Skeletal == nil {
			p.warn("animation %q has no animated node in the scene, skipped", anim.Name)
			p.out.RemoveAnimation(h)
		}
	}
}
