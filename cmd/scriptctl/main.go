package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"scriptshare/internal/cli"
)

func main() {
	var req cli.UploadRequest
	flag.StringVar(&req.Title, "title", "", "script title (required)")
	flag.StringVar(&req.Description, "description", "", "script description (required)")
	flag.StringVar(&req.Version, "version", "", "script version, e.g. v1.0 (required)")
	flag.StringVar(&req.Tags, "tags", "", "comma-separated tags")
	flag.StringVar(&req.BaseScriptID, "base", "", "base script id when uploading a new version")
	flag.StringVar(&req.ImagePath, "image", "", "path to the cover image (required)")
	flag.StringVar(&req.JSONPath, "json", "", "path to the script JSON file (required)")
	server := flag.String("server", envOr("SCRIPTSHARE_URL", "http://localhost:8080"), "server base URL")
	token := flag.String("token", os.Getenv("SCRIPTSHARE_TOKEN"), "session token (or SCRIPTSHARE_TOKEN)")
	flag.Parse()

	client := cli.NewClient(*server, *token)
	result, err := client.Upload(context.Background(), &req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Uploaded script %s (status: %s)\n", result.Script.ID, result.Script.Status)
	fmt.Printf("  series: %s\n", result.Script.BaseScriptID)
	fmt.Println(result.Message)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
