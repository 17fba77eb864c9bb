// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"strconv"
)

// ArMagic opens every ar archive.
const ArMagic = "!<arch>\n"

// Member is one archive member.
type Member struct {
	Name  string
	MTime string
	Data  []byte
}

// ArMemberHeader renders a 60-byte ar member header.
func ArMemberHeader(name, mtime string, size int) string {
	return fmt.Sprintf("%-16s%-12s%-6s%-6s%-8s%-10s`\n", name, mtime, "0", "0", "100644", strconv.Itoa(size))
}

// Archive builds an ar archive from members.
func Archive(members ...Member) []byte {
	var b bytes.Buffer
	b.WriteString(ArMagic)
	for _, m := range members {
		b.WriteString(ArMemberHeader(m.Name, m.MTime, len(m.Data)))
		b.Write(m.Data)
		if len(m.Data)%2 == 1 {
			b.WriteByte('\n')
		}
	}
	return b.Bytes()
}

// COFFObject returns a minimal object body whose TimeDateStamp is packed
// little-endian at offset 4.
func COFFObject(packed []byte, body string) []byte {
	obj := append([]byte("\x64\x86\x01\x00"), packed...)
	return append(obj, body...)
}
