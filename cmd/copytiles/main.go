// Command copytiles replicates metatiles from one storage node to
// another without re-encoding them, grounded on the original copyTiles.py
// tool. Usage: copytiles <source-url> <dest-url> <style> <z> <x0> <y0> <x1> <y1> <ext>
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/artemp/render-stack/internal/domain"
	"github.com/artemp/render-stack/internal/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) != 9 {
		return fmt.Errorf("usage: copytiles <source-url> <dest-url> <style> <z> <x0> <y0> <x1> <y1> <ext>")
	}
	src := storage.NewClient(args[0])
	dst := storage.NewClient(args[1])
	style := args[2]

	z, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("bad z: %w", err)
	}
	x0, err := strconv.Atoi(args[4])
	if err != nil {
		return fmt.Errorf("bad x0: %w", err)
	}
	y0, err := strconv.Atoi(args[5])
	if err != nil {
		return fmt.Errorf("bad y0: %w", err)
	}
	x1, err := strconv.Atoi(args[6])
	if err != nil {
		return fmt.Errorf("bad x1: %w", err)
	}
	y1, err := strconv.Atoi(args[7])
	if err != nil {
		return fmt.Errorf("bad y1: %w", err)
	}
	ext := args[8]

	ctx := context.Background()
	for x := x0; x <= x1; x += domain.MetaTileSize {
		for y := y0; y <= y1; y += domain.MetaTileSize {
			if err := src.CopyMetatile(ctx, dst, style, x, y, z, ext); err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s/%d/%d/%d: %s\n", style, z, x, y, err)
				continue
			}
		}
	}
	return nil
}
