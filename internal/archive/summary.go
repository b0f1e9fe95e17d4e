package archive

import (
	"fmt"
	"strings"
)

// Summary renders a multi-line report of the archive: identity, resource
// counts, audio groups and the chunk tree.
func (a *Archive) Summary() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Game %q (GM version %d.%d, bytecode %d)\n", a.title, a.major, a.minor, a.bytecode)
	fmt.Fprintf(&b, "  Strings:     %d\n", len(a.strings))
	fmt.Fprintf(&b, "  Textures:    %d\n", len(a.textures))
	fmt.Fprintf(&b, "  Atlas rects: %d\n", len(a.tpags))
	fmt.Fprintf(&b, "  Sprites:     %d\n", len(a.sprites))
	fmt.Fprintf(&b, "  Fonts:       %d\n", len(a.fonts))
	fmt.Fprintf(&b, "  Objects:     %d\n", len(a.objects))
	fmt.Fprintf(&b, "  Audio:       %d tracks in %d groups\n", len(a.audio), len(a.groups))
	for _, g := range a.groups {
		fmt.Fprintf(&b, "    %s\n", g)
	}
	if a.missingAudio {
		b.WriteString("  Audio is incomplete: some embedded tracks are stored in other files\n")
	}
	fmt.Fprintf(&b, "  Resources:   %d\n", len(a.resources))
	b.WriteString("Chunks:\n")
	b.WriteString(a.file.Tree())
	return b.String()
}
