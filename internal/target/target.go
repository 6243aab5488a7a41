package target

import (
	"fmt"
	"runtime"
	"strings"
)

// ToolName is the base name of the vendored native binary.
const ToolName = "cub"

// Triple identifies one supported platform/architecture combination,
// e.g. "x86_64-unknown-linux-musl".
type Triple string

// Family is the coarser platform grouping used for slice packages,
// e.g. "linux-x64". One family may cover several triples.
type Family string

type properties struct {
	family     Family
	rgPlatform string
}

// triples holds the registration order used for deterministic iteration.
var triples = []Triple{
	"x86_64-unknown-linux-musl",
	"aarch64-unknown-linux-musl",
	"x86_64-apple-darwin",
	"aarch64-apple-darwin",
	"x86_64-pc-windows-msvc",
	"aarch64-pc-windows-msvc",
}

var registry = map[Triple]properties{
	"x86_64-unknown-linux-musl":  {family: "linux-x64", rgPlatform: "linux-x86_64"},
	"aarch64-unknown-linux-musl": {family: "linux-arm64", rgPlatform: "linux-aarch64"},
	"x86_64-apple-darwin":        {family: "darwin-x64", rgPlatform: "macos-x86_64"},
	"aarch64-apple-darwin":       {family: "darwin-arm64", rgPlatform: "macos-aarch64"},
	"x86_64-pc-windows-msvc":     {family: "win32-x64", rgPlatform: "windows-x86_64"},
	"aarch64-pc-windows-msvc":    {family: "win32-arm64", rgPlatform: "windows-aarch64"},
}

// families lists family tags in first-registration order.
var families []Family

// familyIndex is the inverted triple→family map, built once at init.
var familyIndex map[Family][]Triple

func init() {
	familyIndex = make(map[Family][]Triple)
	for _, t := range triples {
		props, ok := registry[t]
		if !ok || props.family == "" || props.rgPlatform == "" {
			// A registered triple without a complete mapping is a build-time
			// table mistake, not a runtime condition.
			panic(fmt.Sprintf("target: triple %s has no complete registry entry", t))
		}
		if _, seen := familyIndex[props.family]; !seen {
			families = append(families, props.family)
		}
		familyIndex[props.family] = append(familyIndex[props.family], t)
	}
}

// All returns every registered triple in registration order.
func All() []Triple {
	out := make([]Triple, len(triples))
	copy(out, triples)
	return out
}

// Parse validates a triple string against the registry.
func Parse(s string) (Triple, error) {
	t := Triple(s)
	if _, ok := registry[t]; !ok {
		return "", fmt.Errorf("unsupported target triple %q", s)
	}
	return t, nil
}

// Families returns every known family tag in registration order.
func Families() []Family {
	out := make([]Family, len(families))
	copy(out, families)
	return out
}

// ParseFamily validates a slice tag against the registry.
func ParseFamily(s string) (Family, error) {
	f := Family(s)
	if _, ok := familyIndex[f]; !ok {
		return "", fmt.Errorf("unknown platform family %q", s)
	}
	return f, nil
}

// FamilyTriples returns the triples belonging to one family.
func FamilyTriples(f Family) ([]Triple, error) {
	members, ok := familyIndex[f]
	if !ok {
		return nil, fmt.Errorf("unknown platform family %q", f)
	}
	out := make([]Triple, len(members))
	copy(out, members)
	return out, nil
}

// IsWindows reports whether the triple targets Windows.
func (t Triple) IsWindows() bool {
	return strings.Contains(string(t), "windows")
}

// BinaryName returns the vendored binary's filename for this triple.
func (t Triple) BinaryName() string {
	if t.IsWindows() {
		return ToolName + ".exe"
	}
	return ToolName
}

// ArchiveName returns the release archive's filename for this triple.
func (t Triple) ArchiveName() string {
	if t.IsWindows() {
		return fmt.Sprintf("%s-%s.exe.zst", ToolName, t)
	}
	return fmt.Sprintf("%s-%s.zst", ToolName, t)
}

// Family returns the triple's slice tag, or "" for unregistered triples.
func (t Triple) Family() Family {
	return registry[t].family
}

// RipgrepPlatform returns the DotSlash manifest key for this triple,
// or "" for unregistered triples.
func (t Triple) RipgrepPlatform() string {
	return registry[t].rgPlatform
}

// Detect maps the current GOOS/GOARCH to a registered triple. The second
// return is false when the host platform is not a distribution target.
func Detect() (Triple, bool) {
	switch runtime.GOOS {
	case "linux":
		switch runtime.GOARCH {
		case "amd64":
			return "x86_64-unknown-linux-musl", true
		case "arm64":
			return "aarch64-unknown-linux-musl", true
		}
	case "darwin":
		switch runtime.GOARCH {
		case "amd64":
			return "x86_64-apple-darwin", true
		case "arm64":
			return "aarch64-apple-darwin", true
		}
	case "windows":
		switch runtime.GOARCH {
		case "amd64":
			return "x86_64-pc-windows-msvc", true
		case "arm64":
			return "aarch64-pc-windows-msvc", true
		}
	}
	return "", false
}
