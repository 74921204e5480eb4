// stabsdump prints the debugging information encoded in the stabs entries of
// a Mach-O symbol table, or in raw .stab/.stabstr section dumps.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/blacktop/go-macho"

	"github.com/appsworld/go-stabs"
	"github.com/appsworld/go-stabs/debug"
	"github.com/appsworld/go-stabs/types"
)

func main() {
	stabPath := flag.String("stab", "", "raw .stab section dump to read instead of a Mach-O file")
	strPath := flag.String("stabstr", "", "raw .stabstr section dump paired with -stab")
	bigEndian := flag.Bool("be", false, "raw section dumps are big endian")
	leading := flag.String("leading-char", "_", "character prepended to symbol names by the target")
	flag.Parse()

	var (
		records []types.Record
		cfg     stabs.Config
		err     error
	)

	switch {
	case *stabPath != "":
		if *strPath == "" {
			fmt.Fprintln(os.Stderr, "-stab requires -stabstr")
			os.Exit(1)
		}
		records, err = readSections(*stabPath, *strPath, *bigEndian)
		cfg = stabs.Config{Sections: true}

	case flag.NArg() == 1:
		records, cfg, err = readMachO(flag.Arg(0))

	default:
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <macho-file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	if len(*leading) > 0 {
		cfg.LeadingChar = (*leading)[0]
	}

	graph := debug.NewGraph()
	p := stabs.New(graph, cfg)
	for _, rec := range records {
		if err := p.Parse(rec); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
	}
	if err := p.Close(true); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	graph.Dump(os.Stdout)
}

// readMachO pulls the stab entries out of a Mach-O symbol table, keeping the
// regular symbols around for N_GSYM address lookup.
func readMachO(path string) ([]types.Record, stabs.Config, error) {
	m, err := macho.Open(path)
	if err != nil {
		return nil, stabs.Config{}, err
	}
	defer m.Close()

	if m.Symtab == nil {
		return nil, stabs.Config{}, fmt.Errorf("%s has no symbol table", path)
	}

	var records []types.Record
	var syms []types.Sym
	for _, sym := range m.Symtab.Syms {
		// Any of the high three N_TYPE bits marks a debugging entry.
		if uint8(sym.Type)&0xe0 != 0 {
			records = append(records, types.Record{
				Kind:  types.Kind(uint8(sym.Type)),
				Desc:  int(sym.Desc),
				Value: sym.Value,
				Text:  sym.Name,
			})
		} else {
			syms = append(syms, types.Sym{Name: sym.Name, Value: sym.Value})
		}
	}

	return records, stabs.Config{Symbols: syms}, nil
}

// readSections decodes raw dumps of the .stab and .stabstr sections.
func readSections(stabPath, strPath string, bigEndian bool) ([]types.Record, error) {
	stab, err := os.ReadFile(stabPath)
	if err != nil {
		return nil, err
	}
	stabstr, err := os.ReadFile(strPath)
	if err != nil {
		return nil, err
	}

	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}
	return types.DecodeSection(stab, stabstr, order)
}
