package main

import (
	"flag"
	"fmt"
	"os"

	"atlas/config"
	"atlas/document"
	"atlas/export"
)

func main() {
	var (
		interactive = flag.Bool("i", false, "Interactive viewer mode")
		outputFile  = flag.String("o", "", "Export output file (PNG)")
		scale       = flag.Float64("scale", 1.0, "Export scale factor")
		configPath  = flag.String("config", "", "Config file path (overrides search)")
		dbPath      = flag.String("db", "", "Session database path (overrides config)")
		showHelp    = flag.Bool("help", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [map.json]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "An interactive canvas for exploration maps.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Start with an empty map\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s map.json             # Open a map in the viewer\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -o map.png map.json  # Export a map to PNG\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -o small.png -scale 0.25 map.json\n", os.Args[0])
	}
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	cfg, cfgPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Session.Path = *dbPath
	}

	var filename string
	if args := flag.Args(); len(args) > 0 {
		filename = args[0]
	}

	doc := document.New()
	if filename != "" {
		doc, err = document.Load(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// Plain export mode.
	if *outputFile != "" && !*interactive {
		err := export.PNG(doc, *outputFile, export.Options{
			Scale:   *scale,
			Padding: cfg.Viewport.FitPadding,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	v, err := newViewer(doc, filename, cfgPath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	v.run()
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
