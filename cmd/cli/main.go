package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	name := flag.String("name", "", "display name (defaults to the host)")
	rawURL := flag.String("url", "", "server URL to monitor")
	flag.Parse()

	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}

	raw := strings.TrimSpace(*rawURL)
	if raw == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Enter a site URL to monitor (e.g., https://example.com): ")
		line, _ := reader.ReadString('\n')
		raw = strings.TrimSpace(line)
		if *name == "" {
			fmt.Print("Name (optional): ")
			line, _ = reader.ReadString('\n')
			*name = strings.TrimSpace(line)
		}
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		fmt.Println("Invalid URL.")
		os.Exit(2)
	}

	body, _ := json.Marshal(map[string]string{"name": *name, "url": raw})
	req, _ := http.NewRequest(http.MethodPost, api+"/api/servers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key := os.Getenv("ADMIN_API_KEY"); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusCreated:
		fmt.Println("Added! GET /api/status to follow it.")
		fmt.Println(string(out))
	case resp.StatusCode == http.StatusConflict:
		fmt.Println("Already monitored.")
	default:
		fmt.Println("API returned status:", resp.Status, strings.TrimSpace(string(out)))
		os.Exit(1)
	}
}
