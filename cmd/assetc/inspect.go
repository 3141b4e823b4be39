package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/Faultbox/assetpak/pkg/asset"
)

func (a *app) cmdInfo(args []string) error {
	if len(args) < 1 {
		return errors.Wrap(errUsage, "info needs at least one package")
	}
	for i, path := range args {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		if err := a.info(path); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) info(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read package")
	}
	hdr, chunks, err := asset.ReadHeader(data)
	if err != nil {
		return errors.Wrapf(err, "%s", path)
	}

	order := "little-endian"
	if hdr.Flags&asset.FlagBigEndian != 0 {
		order = "big-endian"
	}
	fmt.Fprintf(a.out, "%s\n", path)
	fmt.Fprintf(a.out, "  Version:   %d\n", hdr.Version)
	fmt.Fprintf(a.out, "  Size:      %s\n", formatSize(int64(hdr.TotalSize)))
	fmt.Fprintf(a.out, "  Order:     %s\n", order)
	if hdr.Flags&asset.FlagChecksum != 0 {
		fmt.Fprintf(a.out, "  Checksum:  %08x\n", hdr.Checksum)
	} else {
		fmt.Fprintf(a.out, "  Checksum:  none\n")
	}

	fmt.Fprintln(a.out)
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CHUNK\tCOUNT\tOFFSET\tSIZE\t")
	for _, c := range chunks {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t\n", c.Type, c.Count, c.Offset, formatSize(int64(c.Size)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pkg := asset.New()
	if err := pkg.Decode(data); err != nil {
		return errors.Wrapf(err, "%s", path)
	}
	md := pkg.Metadata
	st := md.Stats
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "  Name:      %s\n", md.Name)
	fmt.Fprintf(a.out, "  Source:    %s\n", md.SourcePath)
	fmt.Fprintf(a.out, "  Generator: %s\n", md.Generator)
	fmt.Fprintf(a.out, "  Asset ID:  %s\n", md.AssetID)
	fmt.Fprintf(a.out, "  Created:   %s\n", time.Unix(md.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(a.out, "  Meshes: %d  Vertices: %d  Triangles: %d\n", st.Meshes, st.Vertices, st.Triangles)
	fmt.Fprintf(a.out, "  Materials: %d  Textures: %d\n", st.Materials, st.Textures)
	fmt.Fprintf(a.out, "  Joints: %d  Animations: %d  Nodes: %d\n", st.Joints, st.Animations, st.Nodes)
	return nil
}

func formatSize(size int64) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d B", size)
	}
}

// dumpSections lists the names accepted by dump -only.
var dumpSections = []string{"metadata", "meshes", "materials", "textures", "skeletons", "animations", "nodes"}

func (a *app) cmdDump(args []string) error {
	flags := flag.NewFlagSet("dump", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	depth := flags.Int("depth", 6, "Maximum nesting depth")
	withBytes := flags.Bool("bytes", false, "Include vertex, image and archive bytes")
	only := flags.String("only", "", "Dump a single section")
	if err := flags.Parse(args); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}
	if flags.NArg() != 1 {
		return errors.Wrap(errUsage, "dump needs exactly one package")
	}

	pkg := asset.New()
	if err := pkg.Deserialize(flags.Arg(0)); err != nil {
		return errors.Wrapf(err, "%s", flags.Arg(0))
	}

	cs := spew.ConfigState{
		Indent:                  "  ",
		DisableCapacities:       true,
		DisablePointerAddresses: true,
		SortKeys:                true,
		MaxDepth:                *depth,
	}
	sections := dumpView(pkg, *withBytes)
	if *only != "" {
		v, ok := sections[*only]
		if !ok {
			return errors.Wrapf(errUsage, "unknown section %q, want one of %v", *only, dumpSections)
		}
		cs.Fdump(a.out, v)
		return nil
	}
	for _, name := range dumpSections {
		fmt.Fprintf(a.out, "== %s ==\n", name)
		cs.Fdump(a.out, sections[name])
	}
	return nil
}

// dumpView copies the asset's resources for dumping. Byte payloads are replaced by their
// are dropped unless withBytes is set.
func dumpView(pkg *asset.ProcessedAsset, withBytes bool) map[string]any {
	meshes := make([]asset.MeshData, 0, len(pkg.Meshes))
	for _, h := range pkg.MeshHandles() {
		m := *pkg.Meshes[h]
		if !withBytes {
			m.Vertices = nil
		}
		meshes = append(meshes, m)
	}
	materials := make([]asset.MaterialData, 0, len(pkg.Materials))
	for _, h := range pkg.MaterialHandles() {
		materials = append(materials, *pkg.Materials[h])
	}
	textures := make([]asset.TextureData, 0, len(pkg.Textures))
	for _, h := range pkg.TextureHandles() {
		t := *pkg.Textures[h]
		if !withBytes {
			t.Data = nil
		}
		textures = append(textures, t)
	}
	type skeletonView struct {
		Name   string
		Joints []string
		Blob   []byte
	}
	skeletons := make([]skeletonView, 0, len(pkg.Skeletons))
	for _, h := range pkg.SkeletonHandles() {
		s := pkg.Skeletons[h]
		v := skeletonView{Name: s.Name}
		if s.Runtime != nil {
			v.Joints = s.Runtime.JointNames()
		}
		if withBytes {
			v.Blob = s.Blob
		}
		skeletons = append(skeletons, v)
	}
	animations := make([]asset.AnimationData, 0, len(pkg.Animations))
	for _, h := range pkg.AnimationHandles() {
		anim := *pkg.Animations[h]
		anim.Skeletal = nil
		if !withBytes {
			anim.Blob = nil
		}
		animations = append(animations, anim)
	}
	return map[string]any{
		"metadata":   pkg.Metadata,
		"meshes":     meshes,
		"materials":  materials,
		"textures":   textures,
		"skeletons":  skeletons,
		"animations": animations,
		"nodes":      pkg.Nodes,
	}
}

func (a *app) cmdValidate(args []string) error {
	if len(args) < 1 {
		return errors.Wrap(errUsage, "validate needs at least one package")
	}
	failed := 0
	for _, path := range args {
		pkg := asset.New()
		err := pkg.Deserialize(path)
		if err == nil {
			err = pkg.Validate()
		}
		if err != nil {
			fmt.Fprintf(a.out, "FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(a.out, "ok   %s\n", path)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d packages invalid", failed, len(args))
	}
	return nil
}
