package convert

import (
	stdmath "math"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/math"
)

func abs32(v float32) float32 { return float32(stdmath.Abs(float64(v))) }

// orthogonalTangent returns a unit vector perpendicular to n, built from the axis along which
// n has its smallest component.
func orthogonalTangent(n math.Vec3) math.Vec3 {
	ax, ay, az := abs32(n.X), abs32(n.Y), abs32(n.Z)
	ref := math.Vec3{X: 1}
	switch {
	case ay <= ax && ay <= az:
		ref = math.Vec3{Y: 1}
	case az <= ax && az <= ay:
		ref = math.Vec3{Z: 1}
	}
	return ref.Sub(n.Scale(n.Dot(ref))).Normalize()
}

// synthesizeTangentFrame adds area-weighted vertex normals and/or tangents to a mesh,
// re-laying out its vertex buffer with the new attributes.
func synthesizeTangentFrame(mesh *asset.MeshData, needNormals, needTangents bool) {
	src := mesh.VertexBuffer()
	format := src.Format
	if needNormals {
		format = format.With(asset.AttrNormal)
	}
	if needTangents {
		format = format.With(asset.AttrTangent)
	}
	buf := src.Relayout(format)
	n := buf.Len()
	tris := len(mesh.Indices) / 3

	var tmp [3]float32
	pos := make([]math.Vec3, n)
	for i := range pos {
		pos[i] = math.V3([3]float32(buf.Floats(i, asset.AttrPosition, tmp[:])))
	}

	normals := make([]math.Vec3, n)
	if needNormals {
		for t := 0; t < tris; t++ {
			i0, i1, i2 := mesh.Indices[3*t], mesh.Indices[3*t+1], mesh.Indices[3*t+2]
			face := pos[i1].Sub(pos[i0]).Cross(pos[i2].Sub(pos[i0]))
			normals[i0] = normals[i0].Add(face)
			normals[i1] = normals[i1].Add(face)
			normals[i2] = normals[i2].Add(face)
		}
		for i := range normals {
			if normals[i].Length() < 1e-12 {
				normals[i] = math.Vec3{Y: 1}
			} else {
				normals[i] = normals[i].Normalize()
			}
			buf.SetFloats(i, asset.AttrNormal, normals[i].X, normals[i].Y, normals[i].Z)
		}
	} else {
		for i := range normals {
			normals[i] = math.V3([3]float32(buf.Floats(i, asset.AttrNormal, tmp[:])))
		}
	}

	if !needTangents {
		mesh.SetVertexBuffer(buf)
		return
	}

	if !format.Has(asset.AttrUV0) {
		for i, nv := range normals {
			t := orthogonalTangent(nv)
			buf.SetFloats(i, asset.AttrTangent, t.X, t.Y, t.Z, 1)
		}
		mesh.SetVertexBuffer(buf)
		return
	}

	var uvTmp [2]float32
	uvs := make([][2]float32, n)
	for i := range uvs {
		uvs[i] = [2]float32(buf.Floats(i, asset.AttrUV0, uvTmp[:]))
	}

	tan := make([]math.Vec3, n)
	bitan := make([]math.Vec3, n)
	for t := 0; t < tris; t++ {
		i0, i1, i2 := mesh.Indices[3*t], mesh.Indices[3*t+1], mesh.Indices[3*t+2]
		e1, e2 := pos[i1].Sub(pos[i0]), pos[i2].Sub(pos[i0])
		du1, dv1 := uvs[i1][0]-uvs[i0][0], uvs[i1][1]-uvs[i0][1]
		du2, dv2 := uvs[i2][0]-uvs[i0][0], uvs[i2][1]-uvs[i0][1]
		det := du1*dv2 - du2*dv1
		if abs32(det) < 1e-12 {
			continue
		}
		r := 1 / det
		sdir := e1.Scale(dv2).Sub(e2.Scale(dv1)).Scale(r)
		tdir := e2.Scale(du1).Sub(e1.Scale(du2)).Scale(r)
		for _, i := range [3]uint32{i0, i1, i2} {
			tan[i] = tan[i].Add(sdir)
			bitan[i] = bitan[i].Add(tdir)
		}
	}

	for i, nv := range normals {
		// Gram-Schmidt against the final normal.
		t := tan[i].Sub(nv.Scale(nv.Dot(tan[i])))
		if t.Length() < 1e-12 {
			t = orthogonalTangent(nv)
		} else {
			t = t.Normalize()
		}
		w := float32(1)
		if nv.Cross(t).Dot(bitan[i]) < 0 {
			w = -1
		}
		buf.SetFloats(i, asset.AttrTangent, t.X, t.Y, t.Z, w)
	}
	mesh.SetVertexBuffer(buf)
}
