package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	getAndPrint(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/state")
}

func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	agent := fs.String("agent", "", "agent_id filter")
	limit := fs.Int("limit", 50, "result limit")
	_ = fs.Parse(args)

	q := url.Values{}
	if a := strings.TrimSpace(*agent); a != "" {
		q.Set("agent", a)
	}
	q.Set("limit", strconv.Itoa(*limit))
	getAndPrint(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/events?" + q.Encode())
}

func getAndPrint(u string) {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
