package convert

import (
	"slices"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
)

// binding describes how a mesh attaches to the unified skeleton.
type binding struct {
	skin  int // source skin, or -1 for a rigid binding
	joint int // rigid joint
}

// rebindMeshes points every skinned or joint-attached mesh at the unified skeleton. Skinned
// meshes get their joint indices remapped from skin-local to unified; meshes hanging off a
// joint get a rigid single-joint binding.
func (p *pipeline) rebindMeshes() error {
	u := p.skeleton
	if u == nil {
		return nil
	}

	bound := make(map[asset.MeshHandle]binding)
	for ni := range p.doc.Nodes {
		node := &p.doc.Nodes[ni]
		if node.Mesh < 0 || node.Mesh >= len(p.meshes) || !p.meshes[node.Mesh].IsValid() {
			continue
		}
		h := p.meshes[node.Mesh]
		mesh, err := p.out.Mesh(h)
		if err != nil {
			return err
		}

		b, ok := p.bindingFor(ni, node, mesh)
		if !ok {
			continue
		}
		if prev, seen := bound[h]; seen {
			if prev != b {
				p.warn("mesh %q is instanced with different bindings, keeping the first", mesh.Name)
			}
			continue
		}
		bound[h] = b

		if b.skin >= 0 {
			p.remapSkinJoints(mesh, &p.doc.Skins[b.skin])
		} else {
			rigidBind(mesh, b.joint)
		}
		mesh.Skeleton = u.Handle
		mesh.InverseBindMatrices = slices.Clone(u.InverseBinds)
	}
	return nil
}

func (p *pipeline) bindingFor(ni int, node *document.Node, mesh *asset.MeshData) (binding, bool) {
	u := p.skeleton
	if node.Skin >= 0 {
		switch {
		case node.Skin >= len(p.doc.Skins):
			p.warn("node %d references skin %d out of range", ni, node.Skin)
		case !mesh.Format.Has(asset.AttrJoints0):
			p.warn("mesh %q is skinned by node %d but has no joint attributes", mesh.Name, ni)
		default:
			return binding{skin: node.Skin}, true
		}
	}
	if j, ok := u.Joint(ni); ok {
		return binding{skin: -1, joint: j}, true
	}
	if pi := p.parents[ni]; pi >= 0 {
		if j, ok := u.Joint(pi); ok {
			return binding{skin: -1, joint: j}, true
		}
	}
	return binding{}, false
}

// remapSkinJoints rewrites skin-local joint indices to unified joint indices in place.
// Unresolvable slots fall back to joint 0 with a warning.
func (p *pipeline) remapSkinJoints(mesh *asset.MeshData, skin *document.Skin) {
	buf := mesh.VertexBuffer()
	warned := false
	for v := 0; v < buf.Len(); v++ {
		local := buf.Joints(v)
		var unified [4]uint16
		for k, l := range local {
			if int(l) < len(skin.Joints) {
				if j, ok := p.skeleton.Joint(skin.Joints[l]); ok {
					unified[k] = uint16(j)
					continue
				}
			}
			if !warned {
				p.warn("mesh %q: skin joint %d has no unified joint, using joint 0", mesh.Name, l)
				warned = true
			}
		}
		buf.SetJoints(v, unified)
	}
}

// rigidBind binds every vertex fully to one joint, adding joint and weight attributes.
func rigidBind(mesh *asset.MeshData, joint int) {
	buf := mesh.VertexBuffer().Relayout(mesh.Format.With(asset.AttrJoints0, asset.AttrWeights0))
	for v := 0; v < buf.Len(); v++ {
		buf.SetJoints(v, [4]uint16{uint16(joint), 0, 0, 0})
		buf.SetFloats(v, asset.AttrWeights0, 1, 0, 0, 0)
	}
	mesh.SetVertexBuffer(buf)
}
