// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pigletvm runs a compiled Piglet bytecode image.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/pigletvm/pigletvm/exec"
	"github.com/pigletvm/pigletvm/image"
)

func main() {
	log.SetPrefix("pigletvm: ")
	log.SetFlags(0)

	interpOnly := flag.Bool("interpret-only", false, "disable the native code JIT and run every instruction through the interpreter")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(flag.Arg(0), *interpOnly))
}

func run(path string, interpOnly bool) int {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("could not open image: %v", err)
		return 1
	}
	defer f.Close()

	img, err := image.Load(f)
	if err != nil {
		log.Printf("could not load image: %v", err)
		return exitCodeFor(err)
	}

	if interpOnly {
		state := exec.NewState(nil)
		in := &exec.Interpreter{Code: img, State: state, Stdout: os.Stdout}
		if err := in.Run(); err != nil {
			log.Printf("%v", err)
			return exitCodeFor(err)
		}
		return 0
	}

	vm := exec.NewVM(img, os.Stdout)
	if err := vm.Run(); err != nil {
		log.Printf("%v", err)
		return exitCodeFor(err)
	}
	return 0
}

func exitCodeFor(err error) int {
	if f, ok := err.(*exec.Fault); ok {
		return f.ExitCode()
	}
	return 1
}
