// Package buildlog extracts produced artifact paths from a build tool's
// human-readable output.
//
// Each supported log format is a small, named set of line extractors. When a
// format no longer matches the log the result is empty and carries a warning,
// so drift in the tool's output is visible instead of silently reducing the
// number of checked artifacts.
package buildlog

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// FormatConanV1 is the conan 1.x `create` output format.
const FormatConanV1 = "conan-v1"

// Kind is what an extractor recognizes.
type Kind int

const (
	KindPackageFolder Kind = iota
	KindPackaged
	KindLinkedLibrary
	KindLinkedExecutable
	KindHook
)

// Extractor matches one marker line. The first capture group is the value.
type Extractor struct {
	Kind Kind
	Re   *regexp.Regexp
}

// Format is a versioned set of extractors plus the package-folder layout the
// candidate names resolve against.
type Format struct {
	Name       string
	Extractors []Extractor

	// Subdirs are searched, in order, under the package folder.
	Subdirs []string

	// BinaryExts filters packaged-file and linked-library names.
	BinaryExts []string
}

var conanV1 = Format{
	Name: FormatConanV1,
	Extractors: []Extractor{
		{KindPackageFolder, regexp.MustCompile(`Package folder\s+(\S.*?)\s*$`)},
		{KindPackaged, regexp.MustCompile(`Packaged\s+\d+\s+'[^']*'\s+files?:\s*(.+?)\s*$`)},
		{KindLinkedLibrary, regexp.MustCompile(`Linking\s+\S+\s+(?:static\s+|shared\s+|module\s+)?library\s+(\S+)\s*$`)},
		{KindLinkedExecutable, regexp.MustCompile(`Linking\s+\S+\s+executable\s+(\S+)\s*$`)},
		{KindHook, regexp.MustCompile(`(.*HOOK - deterministic.*?)\s*$`)},
	},
	Subdirs:    []string{"lib", "bin", "dll"},
	BinaryExts: []string{".lib", ".exe", ".dll", ".a", ".so", ".dylib"},
}

var formats = map[string]Format{
	FormatConanV1: conanV1,
}

// Lookup returns the named format.
func Lookup(name string) (Format, error) {
	f, ok := formats[name]
	if !ok {
		return Format{}, fmt.Errorf("unknown log format %q", name)
	}
	return f, nil
}

// Names lists supported formats.
func Names() []string {
	names := make([]string, 0, len(formats))
	for n := range formats {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Markers is what a log yielded before any filesystem resolution.
type Markers struct {
	PackageFolder string

	// Candidates are artifact basenames in order of first appearance.
	Candidates []string

	// HookLines are the hook's own log lines, echoed for the operator.
	HookLines []string
}

// Parse scans log line by line. Color codes and CR are removed first.
func (f Format) Parse(log string) Markers {
	var m Markers
	seen := map[string]bool{}
	add := func(name string) {
		name = baseName(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		m.Candidates = append(m.Candidates, name)
	}

	sc := bufio.NewScanner(strings.NewReader(StripANSI(log)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		for _, ex := range f.Extractors {
			sub := ex.Re.FindStringSubmatch(line)
			if sub == nil {
				continue
			}
			val := sub[1]
			switch ex.Kind {
			case KindPackageFolder:
				m.PackageFolder = val
			case KindPackaged:
				for _, name := range strings.Split(val, ",") {
					if f.isBinary(name) {
						add(name)
					}
				}
			case KindLinkedLibrary:
				if f.isBinary(val) {
					add(val)
				}
			case KindLinkedExecutable:
				add(val)
			case KindHook:
				m.HookLines = append(m.HookLines, val)
			}
			break
		}
	}
	return m
}

// baseName accepts both separators; MSVC generators log Windows paths.
func baseName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func (f Format) isBinary(name string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	return slices.Contains(f.BinaryExts, ext)
}

// Result is the outcome of artifact discovery for one build.
type Result struct {
	PackageFolder string   `json:"package_folder,omitempty"`
	Paths         []string `json:"paths"`
	HookLines     []string `json:"hook_lines,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Extract parses log and keeps the candidates that exist as regular files
// under the package folder's conventional subdirectories. A relative package
// folder is resolved against dir. The returned paths are absolute and unique.
func (f Format) Extract(log, dir string, isFile func(string) bool) Result {
	m := f.Parse(log)
	res := Result{HookLines: m.HookLines}

	if m.PackageFolder == "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: no package folder marker in build output", f.Name))
		return res
	}

	folder := m.PackageFolder
	if !filepath.IsAbs(folder) {
		folder = filepath.Join(dir, folder)
	}
	res.PackageFolder = filepath.Clean(folder)

	if len(m.Candidates) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: no packaged or linked artifact markers in build output", f.Name))
		return res
	}

	seen := map[string]bool{}
	for _, sub := range f.Subdirs {
		for _, name := range m.Candidates {
			p := filepath.Join(res.PackageFolder, sub, name)
			if seen[p] || !isFile(p) {
				continue
			}
			seen[p] = true
			res.Paths = append(res.Paths, p)
		}
	}

	if len(res.Paths) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %d artifact markers found but none exist under %s", f.Name, len(m.Candidates), res.PackageFolder))
	}
	return res
}
