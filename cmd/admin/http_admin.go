package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	raw := fs.Bool("raw", false, "print the response body unformatted")
	_ = fs.Parse(args)

	body, status, err := fetchState(strings.TrimSpace(*baseURL), *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	if !*raw {
		var buf bytes.Buffer
		if json.Indent(&buf, body, "", "  ") == nil {
			body = buf.Bytes()
		}
	}
	fmt.Println(strings.TrimSpace(string(body)))
	if status/100 != 2 {
		os.Exit(1)
	}
}

func fetchState(baseURL string, timeout time.Duration) ([]byte, int, error) {
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Get(strings.TrimRight(baseURL, "/") + "/admin/v1/state")
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return b, resp.StatusCode, err
}
