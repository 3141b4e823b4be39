package convert

import (
	"fmt"
	"path"
	"strings"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
)

// mimeByExtension covers the image formats glTF allows.
var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".ktx2": "image/ktx2",
}

func imageMime(img *document.Image) string {
	if img.MimeType != "" {
		return img.MimeType
	}
	if strings.HasPrefix(img.URI, "data:") {
		if mime, _, ok := strings.Cut(strings.TrimPrefix(img.URI, "data:"), ";"); ok {
			return mime
		}
	}
	return mimeByExtension[strings.ToLower(path.Ext(img.URI))]
}

// processTextures converts textures. Images stored inside the document are embedded when
// enabled; external images keep their URI.
func (p *pipeline) processTextures() {
	for i := range p.doc.Textures {
		src := &p.doc.Textures[i]
		tex := &asset.TextureData{Name: src.Name}
		if tex.Name == "" {
			tex.Name = fmt.Sprintf("texture_%d", i)
		}

		if src.Sampler >= 0 && src.Sampler < len(p.doc.Samplers) {
			s := p.doc.Samplers[src.Sampler]
			tex.MagFilter, tex.MinFilter, tex.WrapS, tex.WrapT = s.MagFilter, s.MinFilter, s.WrapS, s.WrapT
		}

		if src.Source < 0 || src.Source >= len(p.doc.Images) {
			p.warn("texture %q: image %d out of range", tex.Name, src.Source)
		} else {
			img := &p.doc.Images[src.Source]
			tex.MimeType = imageMime(img)
			internal := img.BufferView >= 0 || img.Data != nil
			if !strings.HasPrefix(img.URI, "data:") {
				tex.URI = img.URI
			}
			if internal && p.opts.EmbedTextures {
				data, err := p.doc.ImageData(src.Source)
				if err != nil {
					p.warn("texture %q: %v", tex.Name, err)
				} else {
					tex.Data = data
				}
			}
		}
		p.textures[i] = p.out.AddTexture(tex)
	}
}

func (p *pipeline) textureHandle(material string, index int) asset.TextureHandle {
	if index < 0 {
		return asset.TextureHandle{}
	}
	if index >= len(p.textures) {
		p.warn("material %q: texture %d out of range", material, index)
		return asset.TextureHandle{}
	}
	return p.textures[index]
}

func convertAlphaMode(m document.AlphaMode) asset.AlphaMode {
	switch m {
	case document.AlphaMask:
		return asset.AlphaMask
	case document.AlphaBlend:
		return asset.AlphaBlend
	default:
		return asset.AlphaOpaque
	}
}

// processMaterials converts textures and materials. Meshes processed later reference the
// resulting handles.
func (p *pipeline) processMaterials() {
	if !p.opts.ImportMaterials {
		return
	}
	p.processTextures()
	for i := range p.doc.Materials {
		src := &p.doc.Materials[i]
		name := src.Name
		if name == "" {
			name = fmt.Sprintf("material_%d", i)
		}
		p.materials[i] = p.out.AddMaterial(&asset.MaterialData{
			Name:                     name,
			BaseColorFactor:          src.BaseColorFactor,
			MetallicFactor:           src.MetallicFactor,
			RoughnessFactor:          src.RoughnessFactor,
			EmissiveFactor:           src.EmissiveFactor,
			AlphaMode:                convertAlphaMode(src.AlphaMode),
			AlphaCutoff:              src.AlphaCutoff,
			DoubleSided:              src.DoubleSided,
			BaseColorTexture:         p.textureHandle(name, src.BaseColorTexture),
			MetallicRoughnessTexture: p.textureHandle(name, src.MetallicRoughnessTexture),
			NormalTexture:            p.textureHandle(name, src.NormalTexture),
			OcclusionTexture:         p.textureHandle(name, src.OcclusionTexture),
			EmissiveTexture:          p.textureHandle(name, src.EmissiveTexture),
		})
	}
}
