// Command classdump reconstructs Objective-C and Swift declarations from
// Mach-O binaries.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	macho "github.com/appsworld/go-classdump"
	"github.com/appsworld/go-classdump/internal/swiftdemangle"
	"github.com/appsworld/go-classdump/pkg/dump"
	"github.com/appsworld/go-classdump/pkg/objctype"
	"github.com/appsworld/go-classdump/types"
)

const (
	toolName    = "classdump"
	toolVersion = "1.0.0"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type flags struct {
	archName   string
	listArches bool

	showIvarOffsets  bool
	showImpAddresses bool
	suppressBanner   bool

	sortByName        bool
	sortByInheritance bool
	sortMethods       bool

	classFilter  string
	methodFilter string

	multiFile bool
	outputDir string
	recursive bool

	sdkIOS  string
	sdkMac  string
	sdkRoot string

	hide        []string
	outputStyle string
	demangle    bool
	noDemangle  bool

	jsonOutput bool
	color      bool
	theme      string
	verbose    bool
}

func main() {
	var fl flags

	cmd := &cobra.Command{
		Use:           "classdump [flags] FILE",
		Short:         "Reconstruct Objective-C and Swift declarations from Mach-O binaries",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(&fl, args[0])
		},
	}

	cmd.Flags().StringVar(&fl.archName, "arch", "", "select one architecture from a fat file (ppc, ppc64, i386, x86_64, armv6, armv7, armv7s, arm64, arm64e)")
	cmd.Flags().BoolVar(&fl.listArches, "list-arches", false, "print available architectures and exit")
	cmd.Flags().BoolVarP(&fl.showIvarOffsets, "ivar-offsets", "a", false, "show ivar runtime offsets")
	cmd.Flags().BoolVarP(&fl.showImpAddresses, "method-addresses", "A", false, "show method implementation addresses")
	cmd.Flags().BoolVarP(&fl.suppressBanner, "no-banner", "t", false, "suppress the top banner")
	cmd.Flags().BoolVarP(&fl.sortByName, "sort", "s", false, "sort classes and categories by name")
	cmd.Flags().BoolVarP(&fl.sortByInheritance, "sort-inheritance", "I", false, "sort classes by inheritance (roots first); overrides -s")
	cmd.Flags().BoolVarP(&fl.sortMethods, "sort-methods", "S", false, "sort methods by name")
	cmd.Flags().StringVarP(&fl.classFilter, "match", "C", "", "only show classes matching regular expression")
	cmd.Flags().StringVarP(&fl.methodFilter, "find", "f", "", "only show methods whose selector contains the string")
	cmd.Flags().BoolVarP(&fl.multiFile, "headers", "H", false, "generate one header file per class")
	cmd.Flags().StringVarP(&fl.outputDir, "output", "o", "", "output directory for -H")
	cmd.Flags().BoolVarP(&fl.recursive, "recursive", "r", false, "recursively descend into frameworks and dylibs")
	cmd.Flags().StringVar(&fl.sdkIOS, "sdk-ios", "", "iOS SDK version hint for forward declarations")
	cmd.Flags().StringVar(&fl.sdkMac, "sdk-mac", "", "macOS SDK version hint for forward declarations")
	cmd.Flags().StringVar(&fl.sdkRoot, "sdk-root", "", "SDK root path hint for forward declarations")
	cmd.Flags().StringSliceVar(&fl.hide, "hide", nil, "hide forward-declaration sections (structures, protocols, all)")
	cmd.Flags().StringVar(&fl.outputStyle, "output-style", "objc", "declaration syntax (objc, swift)")
	cmd.Flags().BoolVar(&fl.demangle, "demangle", true, "demangle Swift names in output")
	cmd.Flags().BoolVar(&fl.noDemangle, "no-demangle", false, "keep Swift names mangled")
	cmd.Flags().BoolVar(&fl.jsonOutput, "json", false, "emit a JSON document instead of headers")
	cmd.Flags().BoolVar(&fl.color, "color", false, "syntax-highlight the output")
	cmd.Flags().StringVar(&fl.theme, "theme", "nord", "chroma theme for --color")
	cmd.Flags().BoolVarP(&fl.verbose, "verbose", "V", false, "enable diagnostic logging")

	if err := cmd.Execute(); err != nil {
		if strings.Contains(err.Error(), "arg(s)") || strings.Contains(err.Error(), "unknown flag") {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitUsage)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}

func run(fl *flags, path string) error {
	log.SetHandler(clihandler.New(os.Stderr))
	if fl.verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.ErrorLevel)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	bin, err := macho.NewBinary(data)
	if err != nil {
		return err
	}

	if fl.listArches {
		fmt.Println(strings.Join(bin.ArchNames(), " "))
		return nil
	}

	opts, arch, err := buildOptions(fl, path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	dem := swiftdemangle.New()
	ctrl := dump.NewController(opts, dem)
	ctrl.Arch = arch

	paths := []string{path}
	if fl.recursive {
		more, err := discoverNested(path)
		if err != nil {
			return err
		}
		paths = append(paths, more...)
	}

	ctx := context.Background()

	if fl.multiFile {
		dir := fl.outputDir
		if dir == "" {
			dir = "."
		}
		return runMultiFile(ctx, paths, opts, arch, dem, dir)
	}

	var buf bytes.Buffer
	if fl.jsonOutput {
		if err := runJSON(ctx, paths, opts, arch, dem, &buf); err != nil {
			return err
		}
	} else if len(paths) == 1 {
		if err := ctrl.ProcessFile(ctx, paths[0], &buf); err != nil {
			return err
		}
	} else {
		if err := ctrl.ProcessFiles(ctx, paths, &buf); err != nil {
			return err
		}
	}

	if fl.color && !fl.jsonOutput {
		if err := quick.Highlight(os.Stdout, buf.String(), "objective-c", "terminal256", fl.theme); err == nil {
			return nil
		}
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

func buildOptions(fl *flags, path string) (*dump.Options, *types.Arch, error) {
	opts := &dump.Options{
		ShowIvarOffsets:   fl.showIvarOffsets,
		ShowImpAddresses:  fl.showImpAddresses,
		SuppressBanner:    fl.suppressBanner,
		SortByName:        fl.sortByName,
		SortByInheritance: fl.sortByInheritance,
		SortMethods:       fl.sortMethods,
		MethodFilter:      fl.methodFilter,
		Demangle:          fl.demangle && !fl.noDemangle,
		ToolName:          toolName,
		ToolVersion:       toolVersion,
		FilePath:          path,
	}

	if fl.classFilter != "" {
		re, err := regexp.Compile(fl.classFilter)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid -C pattern: %v", err)
		}
		opts.ClassFilter = re
	}

	for _, h := range fl.hide {
		switch h {
		case "structures":
			opts.HideStructures = true
		case "protocols":
			opts.HideProtocols = true
		case "all":
			opts.HideStructures = true
			opts.HideProtocols = true
		default:
			return nil, nil, fmt.Errorf("unknown --hide section %q", h)
		}
	}

	switch fl.outputStyle {
	case "objc":
		opts.Style = objctype.StyleObjC
	case "swift":
		opts.Style = objctype.StyleSwift
	default:
		return nil, nil, fmt.Errorf("unknown --output-style %q", fl.outputStyle)
	}

	var arch *types.Arch
	if fl.archName != "" {
		a, ok := types.ArchFromName(fl.archName)
		if !ok {
			return nil, nil, fmt.Errorf("unknown architecture %q", fl.archName)
		}
		arch = &a
	}
	return opts, arch, nil
}

func runJSON(ctx context.Context, paths []string, opts *dump.Options, arch *types.Arch, dem *swiftdemangle.Demangler, w *bytes.Buffer) error {
	for _, p := range paths {
		model, err := extractPath(ctx, p, opts, arch, dem)
		if err != nil {
			return err
		}
		if err := dump.Walk(model, dump.NewJSONVisitor(w)); err != nil {
			return err
		}
	}
	return nil
}

func runMultiFile(ctx context.Context, paths []string, opts *dump.Options, arch *types.Arch, dem *swiftdemangle.Demangler, dir string) error {
	for _, p := range paths {
		model, err := extractPath(ctx, p, opts, arch, dem)
		if err != nil {
			return err
		}
		if err := dump.Walk(model, dump.NewMultiFileVisitor(dir)); err != nil {
			return err
		}
	}
	return nil
}

func extractPath(ctx context.Context, path string, opts *dump.Options, arch *types.Arch, dem *swiftdemangle.Demangler) (*dump.Model, error) {
	var (
		f   *macho.File
		err error
	)
	if arch != nil {
		f, err = macho.OpenArch(path, *arch)
	} else {
		f, err = macho.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	o := *opts
	o.FilePath = path
	return dump.Extract(ctx, f, &o, dem)
}

// discoverNested finds frameworks and dylibs inside a bundle directory tree.
func discoverNested(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		root := filepath.Dir(path)
		info, err = os.Stat(root)
		if err != nil || !info.IsDir() {
			return nil, nil
		}
		path = root
	}

	var found []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(p, ".dylib") || strings.Contains(p, ".framework/") {
			if isMachO(p) {
				found = append(found, p)
			}
		}
		return nil
	})
	return found, err
}

func isMachO(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return false
	}
	switch {
	case magic == [4]byte{0xfe, 0xed, 0xfa, 0xce}, magic == [4]byte{0xfe, 0xed, 0xfa, 0xcf},
		magic == [4]byte{0xce, 0xfa, 0xed, 0xfe}, magic == [4]byte{0xcf, 0xfa, 0xed, 0xfe},
		magic == [4]byte{0xca, 0xfe, 0xba, 0xbe}, magic == [4]byte{0xca, 0xfe, 0xba, 0xbf}:
		return true
	}
	return false
}
