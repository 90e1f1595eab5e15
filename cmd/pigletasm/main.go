// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pigletasm assembles Piglet bytecode text into a binary image.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"os"

	"github.com/pigletvm/pigletvm/asm"
)

func main() {
	log.SetPrefix("pigletasm: ")
	log.SetFlags(0)

	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Arg(1)); err != nil {
		log.Fatal(err)
	}
}

func run(inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	words, err := asm.Assemble(in)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	raw := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(w))
	}
	_, err = out.Write(raw)
	return err
}
