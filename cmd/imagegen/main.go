package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmorgan81/genserve/internal/capability"
	"github.com/dmorgan81/genserve/internal/genclient"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/samber/lo"
)

func main() {
	var opts genclient.Options
	endpoint := flag.String("endpoint", lo.CoalesceOrEmpty(os.Getenv("GENSERVE_ENDPOINT"), genclient.DefaultEndpoint), "generation service URL")
	out := flag.String("out", "", "where to write the PNG (default qwen_image_<timestamp>.png)")
	health := flag.Bool("health", false, "check service health and exit")
	info := flag.Bool("info", false, "print model info and exit")
	verbose := flag.Bool("v", false, "log requests to stderr")
	flag.StringVar(&opts.Prompt, "prompt", "", "what to draw (defaults to the remaining arguments)")
	flag.StringVar(&opts.NegativePrompt, "negative", "", "what to avoid")
	flag.StringVar(&opts.Ratio, "ratio", "1:1", "aspect ratio: "+strings.Join(lo.Map(capability.AspectRatios, func(r capability.AspectRatio, _ int) string { return r.Name }), ", "))
	flag.IntVar(&opts.Width, "width", 0, "width in pixels, overrides -ratio together with -height")
	flag.IntVar(&opts.Height, "height", 0, "height in pixels, overrides -ratio together with -width")
	flag.IntVar(&opts.Steps, "steps", 50, "inference steps")
	flag.Float64Var(&opts.CFGScale, "cfg", 4.0, "true CFG scale")
	flag.Int64Var(&opts.Seed, "seed", -1, "seed, -1 for random")
	flag.StringVar(&opts.Language, "lang", "english", "quality suffix language: english, chinese, none")
	flag.StringVar(&opts.Enhancement, "enhance", "", "custom quality suffix, replaces -lang")
	flag.Parse()

	ctx := context.Background()
	if *verbose {
		ctx = log.NewContext(ctx, log.New(os.Stderr))
	}
	client := genclient.New(*endpoint)

	switch {
	case *health:
		status, err := client.Health(ctx)
		if err != nil {
			fail(genclient.Explain(err, *endpoint))
		}
		fmt.Printf("status: %s\nmodel: %s (loaded: %t)\nGPUs: %d\n", status.Status, status.ModelName, status.ModelLoaded, status.GPUInfo.Count)
		for i, mem := range status.GPUInfo.Memory {
			fmt.Printf("GPU %d: %s\n", i, mem)
		}
		return
	case *info:
		mi, err := client.ModelInfo(ctx)
		if err != nil {
			fail(genclient.Explain(err, *endpoint))
		}
		fmt.Printf("%s (%s)\n", mi.ModelName, mi.ModelType)
		for _, r := range capability.AspectRatios {
			fmt.Printf("  %-5s %dx%d\n", r.Name, r.Width, r.Height)
		}
		return
	}

	if opts.Prompt == "" {
		opts.Prompt = strings.Join(flag.Args(), " ")
	}
	req, err := opts.Request()
	if err != nil {
		fail(err.Error())
	}

	start := time.Now()
	resp, err := client.Generate(ctx, req)
	if err != nil {
		fail(genclient.Explain(err, *endpoint))
	}

	png, err := base64.StdEncoding.DecodeString(resp.ImageBase64)
	if err != nil {
		fail(fmt.Sprintf("Error: decode image: %v", err))
	}
	path := lo.CoalesceOrEmpty(*out, fmt.Sprintf("qwen_image_%d.png", time.Now().Unix()))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		fail(fmt.Sprintf("Error: %v", err))
	}
	fmt.Printf("Generated in %.1f seconds: %s (%dx%d, seed %d)\n", time.Since(start).Seconds(), path, req.Width, req.Height, resp.SeedUsed)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
