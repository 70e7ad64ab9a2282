// Package emit writes assembled programs as C headers.
package emit

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/sarchlab/pdsasm/core"
)

const headerTmpl = `/* Generated by pdsasm for target {{.Target}}. Do not edit. */
#ifndef {{.Guard}}
#define {{.Guard}}

#include <stdint.h>

#define {{.Upper}}_SIZE ({{.Size}}U)
#define {{.Upper}}_DATA_SEGMENT_SIZE ({{.DataSize}}U)

static uint32_t {{.Name}}[{{len .Dwords}}] = {
{{- range $i, $row := .Rows}}
	{{$row}}
{{- end}}
};
{{range .Setters}}
static inline void {{$.Name}}_set_{{.Name}}(uint32_t *buf, uint32_t value)
{
{{- range .Dwords}}
	buf[{{.}}] = value;
{{- end}}
{{- range .Params}}
	buf[{{.Word}}] = (buf[{{.Word}}] & ~0x{{printf "%08x" .Mask}}U) |
		((((value + {{.Addend}}U) >> {{.Scale}}) & 0x{{printf "%x" .FieldMask}}U) << {{.Shift}});
{{- end}}
}
{{end}}
#endif /* {{.Guard}} */
`

const sizeTmpl = `/* Generated by pdsasm for target {{.Target}}. Do not edit. */
#ifndef {{.Guard}}_SIZE_H
#define {{.Guard}}_SIZE_H

#define {{.Upper}}_SIZE ({{.Size}}U)
#define {{.Upper}}_DATA_SEGMENT_SIZE ({{.DataSize}}U)

#endif /* {{.Guard}}_SIZE_H */
`

var (
	header = template.Must(template.New("header").Parse(headerTmpl))
	size   = template.Must(template.New("size").Parse(sizeTmpl))
)

type param struct {
	Word      int
	Mask      uint32
	FieldMask uint32
	Shift     uint
	Scale     uint
	Addend    uint32
}

type setter struct {
	Name   string
	Dwords []uint32
	Params []param
}

type view struct {
	Target   string
	Name     string
	Upper    string
	Guard    string
	Size     int
	DataSize int
	Dwords   []uint32
	Rows     []string
	Setters  []setter
}

func newView(name string, out *core.Output) view {
	upper := strings.ToUpper(name)
	dwords := out.ImageDwords()

	v := view{
		Target:   out.Target.Name,
		Name:     name,
		Upper:    upper,
		Guard:    upper + "_H",
		Size:     len(dwords) * 4,
		DataSize: out.DataSize(),
		Dwords:   dwords,
	}

	for i := 0; i < len(dwords); i += 4 {
		var cells []string
		for _, w := range dwords[i:min(i+4, len(dwords))] {
			cells = append(cells, fmt.Sprintf("0x%08xU,", w))
		}

		v.Rows = append(v.Rows, strings.Join(cells, " "))
	}

	for _, c := range out.Constants {
		s := setter{Name: c.Name, Dwords: c.Dwords}

		for _, p := range c.Params {
			fieldMask := uint32(1)<<p.Bits - 1
			s.Params = append(s.Params, param{
				Word:      p.Word,
				Mask:      fieldMask << p.Field,
				FieldMask: fieldMask,
				Shift:     p.Field,
				Scale:     p.Scale,
				Addend:    p.Addend,
			})
		}

		v.Setters = append(v.Setters, s)
	}

	return v
}

// Header writes the program image as a C array named name, together with
// its size macros and one setter per data constant.
func Header(w io.Writer, name string, out *core.Output) error {
	return header.Execute(w, newView(name, out))
}

// SizeHeader writes only the size macros.
func SizeHeader(w io.Writer, name string, out *core.Output) error {
	return size.Execute(w, newView(name, out))
}

// Patch applies what a generated setter does to an in-memory image: the
// constant's data-segment dwords and inline fields take value.
func Patch(image []uint32, c core.ConstantInfo, value uint32) {
	for _, d := range c.Dwords {
		image[d] = value
	}

	for _, p := range c.Params {
		fieldMask := uint32(1)<<p.Bits - 1
		image[p.Word] = image[p.Word]&^(fieldMask<<p.Field) |
			((value+p.Addend)>>p.Scale)&fieldMask<<p.Field
	}
}
