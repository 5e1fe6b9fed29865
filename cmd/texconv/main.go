// texconv - texture converter for GTEX containers, DDS and common image formats
//
// Usage:
//   texconv convert [flags] <input> <output>           # convert one file
//   texconv info [-json] <input>                        # show texture info
//   texconv batch [flags] -from .gtex -to .dds <in> <out>  # convert a directory
//   texconv formats                                     # list codecs and versions
//
// The input and output codecs are chosen by file extension.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/EchoTools/texforge/pkg/batch"
	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/container"
	"github.com/EchoTools/texforge/pkg/convert"
	"github.com/EchoTools/texforge/pkg/sidecar"
	"github.com/EchoTools/texforge/pkg/texture"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch command := os.Args[1]; command {
	case "convert":
		err = runConvert(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "batch":
		err = runBatch(os.Args[2:])
	case "formats":
		err = runFormats()
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("texconv - texture converter for GTEX containers, DDS and common image formats")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  texconv convert [flags] <input> <output>")
	fmt.Println("  texconv info [-json] <input>")
	fmt.Println("  texconv batch [flags] -from <ext> -to <ext> <input_dir> <output_dir>")
	fmt.Println("  texconv formats")
	fmt.Println()
	fmt.Println("Run 'texconv <command> -h' for the flags of a command.")
}

// optionFlags registers the conversion flags on fs. The returned function
// builds the options once fs has been parsed.
func optionFlags(fs *flag.FlagSet) func() (*codec.Options, error) {
	version := fs.String("version", "", "container layout to write (default: keep the source's, else "+container.DefaultVersion+")")
	variant := fs.String("variant", "", "engine name recorded in extended container layouts")
	platform := fs.String("platform", "", "swizzle linear input for this platform when writing containers")
	unswizzle := fs.String("unswizzle", "", "treat decoded data as laid out for this platform and linearize it")
	legacy := fs.Bool("legacy", false, "write the big-endian legacy container body")
	decompress := fs.Bool("decompress", false, "decode block-compressed data to RGBA8")
	normal := fs.Bool("normal", false, "detect normal maps")
	compress := fs.Bool("compress", false, "compress uncompressed data to a block format the output supports")
	legacyBC := fs.Bool("legacy-bc", false, "with -compress, only use BC1 and BC3")
	mips := fs.Bool("mips", false, "generate a full mip chain for single-level textures")
	dx10 := fs.Bool("dx10", false, "always write the DX10 DDS header")
	sidecarOut := fs.Bool("sidecar", false, "also write <output>.json with the texture metadata")
	verbose := fs.Bool("v", false, "log debug output")

	return func() (*codec.Options, error) {
		setupLogging(*verbose)
		p, err := texture.ParsePlatform(strings.ToLower(*platform))
		if err != nil {
			return nil, err
		}
		u, err := texture.ParsePlatform(strings.ToLower(*unswizzle))
		if err != nil {
			return nil, err
		}
		opts := codec.NewOptions(
			codec.WithVersion(strings.ToUpper(*version)),
			codec.WithVariant(*variant),
			codec.WithPlatform(p),
			codec.WithUnswizzle(u),
			codec.WithLegacy(*legacy),
			codec.WithDecompress(*decompress),
			codec.WithAutoNormalMap(*normal),
			codec.WithAutoCompress(*compress, *legacyBC),
			codec.WithMips(*mips),
			codec.WithDX10(*dx10),
		)
		opts.EmitSidecar = *sidecarOut
		return opts, opts.Validate()
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	codec.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	options := optionFlags(fs)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return errors.New("usage: texconv convert [flags] <input> <output>")
	}
	opts, err := options()
	if err != nil {
		return err
	}
	src, dst := fs.Arg(0), fs.Arg(1)
	if err := convert.Default().Convert(src, dst, opts); err != nil {
		return err
	}
	fmt.Printf("Converted %s → %s\n", src, dst)
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print the metadata as JSON")
	unswizzle := fs.String("unswizzle", "", "linearize data stored for this platform")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: texconv info [-json] <input>")
	}
	setupLogging(false)
	u, err := texture.ParsePlatform(strings.ToLower(*unswizzle))
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	tex, err := convert.DefaultRegistry().Load(path, codec.NewOptions(codec.WithUnswizzle(u)))
	if err != nil {
		return err
	}
	m := tex.Metadata()
	if *asJSON {
		data, err := sidecar.Marshal(m)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	}

	fmt.Printf("File: %s\n", path)
	if m.Version != "" {
		fmt.Printf("Container: %s (legacy=%v)\n", m.Version, m.Legacy)
	}
	if m.Name != "" || m.Engine != "" {
		fmt.Printf("Name: %s  Engine: %s\n", m.Name, m.Engine)
	}
	fmt.Printf("Dimensions: %dx%dx%d\n", m.Width, m.Height, m.Depth)
	fmt.Printf("Mip levels: %d\n", m.MipCount)
	fmt.Printf("Array size: %d  Faces: %d  Surface: %s\n", m.ArraySize, m.FaceCount, m.Surface)
	fmt.Printf("Format: %s (tag %d)\n", m.Format, m.FormatTag)
	fmt.Printf("Platform: %s  Gamma: %v\n", m.Platform, m.Gamma)
	fmt.Printf("Data size: %d bytes (%.2f KB)\n", m.DataSize, float64(m.DataSize)/1024)
	return nil
}

func runBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	from := fs.String("from", "", "source extension, e.g. .gtex")
	to := fs.String("to", "", "target extension, e.g. .dds")
	workers := fs.Int("workers", 0, "parallel conversions (default: number of CPUs)")
	recursive := fs.Bool("r", false, "descend into subdirectories")
	options := optionFlags(fs)
	fs.Parse(args)
	if fs.NArg() != 2 || *from == "" || *to == "" {
		return errors.New("usage: texconv batch [flags] -from <ext> -to <ext> <input_dir> <output_dir>")
	}
	opts, err := options()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := batch.Run(ctx, convert.Default(), batch.Job{
		SourceDir: fs.Arg(0),
		DestDir:   fs.Arg(1),
		SourceExt: *from,
		TargetExt: *to,
		Options:   opts,
		Workers:   *workers,
		Recursive: *recursive,
		Progress: func(done, total int, _ string, _ error) {
			if done%100 == 0 {
				fmt.Printf("Processed %d/%d files...\n", done, total)
			}
		},
	})
	if errors.Is(err, batch.ErrNoFiles) {
		fmt.Println("No files found")
		return err
	}
	if report != nil {
		for _, f := range report.Failed {
			fmt.Fprintf(os.Stderr, "convert %s\n", f.Error())
		}
		fmt.Printf("\nCompleted: %d files converted, %d errors\n", report.Converted, len(report.Failed))
	}
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d files failed", len(report.Failed), report.Matched)
	}
	return nil
}

func runFormats() error {
	reg := convert.DefaultRegistry()
	fmt.Println("Codecs:")
	for _, c := range reg.Codecs() {
		d := c.Describe()
		fmt.Printf("  %-6s %-32s %s\n", d.Name, d.FormatName, strings.Join(d.Extensions, " "))
	}
	fmt.Println()
	fmt.Printf("Container layouts: %s\n", strings.Join(container.Versions(), ", "))
	fmt.Println()
	fmt.Println("Platforms:")
	for _, p := range texture.Platforms() {
		fmt.Printf("  %s\n", p)
	}
	fmt.Println()
	fmt.Println("Block codec bridges:")
	for _, b := range convert.DefaultBridges().Bridges() {
		fmt.Printf("  %s\n", b.Name())
	}
	return nil
}
