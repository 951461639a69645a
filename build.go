//go:build ignore

// Builds control and simulator into bin/. With -arm the control binary is
// also cross-compiled for the robot's ARM board.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type target struct {
	name   string
	path   string
	output string
	goos   string
	goarch string
}

func main() {
	arm := flag.Bool("arm", false, "Also build control for linux/arm64")
	flag.Parse()

	// 设置输出目录
	outputDir := "bin"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Printf("Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	targets := []target{
		{name: "control", path: "./cmd/control", output: "control"},
		{name: "simulator", path: "./cmd/simulator", output: "simulator"},
	}
	if *arm {
		targets = append(targets, target{
			name: "control (arm64)", path: "./cmd/control", output: "control-linux-arm64",
			goos: "linux", goarch: "arm64",
		})
	}

	for _, t := range targets {
		outputPath := filepath.Join(outputDir, t.output)
		fmt.Printf("Building %s -> %s\n", t.name, outputPath)

		cmd := exec.Command("go", "build", "-trimpath", "-o", outputPath, t.path)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = os.Environ()
		if t.goos != "" {
			cmd.Env = append(cmd.Env, "GOOS="+t.goos, "GOARCH="+t.goarch, "CGO_ENABLED=0")
		}

		if err := cmd.Run(); err != nil {
			fmt.Printf("Error building %s: %v\n", t.name, err)
			os.Exit(1)
		}
	}

	fmt.Println("All builds completed successfully!")
}
