// CLAUDE:SUMMARY External js-render helper: launches a stealth-patched headless browser, navigates once, and emits {url,title,html,text} JSON on stdout (or {error} on stderr).
// Command kto-render is the external helper the js-render engine shells
// out to for pages that need JavaScript execution before their content
// exists. It is a one-shot process: navigate, extract, print, exit.
//
// Usage:
//
//	kto-render <url> <timeout> [--storage-state <path>]
//
// On success, a JSON object {"url","title","html","text"} is written to
// stdout. On failure, a JSON object {"error"} is written to stderr and
// the process exits non-zero.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

type reply struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html"`
	Text  string `json:"text"`
}

type failure struct {
	Error string `json:"error"`
}

func main() {
	if len(os.Args) < 3 {
		fail(fmt.Errorf("usage: kto-render <url> <timeout> [--storage-state path]"))
	}
	url := os.Args[1]
	timeout, err := time.ParseDuration(os.Args[2])
	if err != nil {
		fail(fmt.Errorf("parse timeout: %w", err))
	}
	storageState := ""
	for i := 3; i < len(os.Args)-1; i++ {
		if os.Args[i] == "--storage-state" {
			storageState = os.Args[i+1]
		}
	}

	r, err := render(url, timeout, storageState)
	if err != nil {
		fail(err)
	}
	out, _ := json.Marshal(r)
	os.Stdout.Write(out)
}

func render(url string, timeout time.Duration, storageState string) (*reply, error) {
	browser := rod.New()
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("create stealth page: %w", err)
	}
	defer page.Close()

	if storageState != "" {
		if err := loadStorageState(page, storageState); err != nil {
			// A missing or unreadable storage-state file degrades to an
			// unauthenticated navigation rather than failing the fetch.
			fmt.Fprintf(os.Stderr, "kto-render: storage state not applied: %v\n", err)
		}
	}

	pageCtx := page.Timeout(timeout)
	if err := pageCtx.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := pageCtx.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	title, err := pageCtx.Eval(`() => document.title`)
	if err != nil {
		return nil, fmt.Errorf("read title: %w", err)
	}
	html, err := pageCtx.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	text, err := pageCtx.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}

	return &reply{
		URL:   url,
		Title: title.Value.Str(),
		HTML:  html.Value.Str(),
		Text:  text.Value.Str(),
	}, nil
}

// loadStorageState parses a browser cookie-jar export and sets each
// cookie on the page before navigation, so authenticated watches don't
// need to re-run a login flow every check.
func loadStorageState(page *rod.Page, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw []struct {
		Name     string `json:"name"`
		Value    string `json:"value"`
		Domain   string `json:"domain"`
		Path     string `json:"path"`
		Secure   bool   `json:"secure"`
		HTTPOnly bool   `json:"httpOnly"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse storage state: %w", err)
	}
	params := make([]*proto.NetworkCookieParam, 0, len(raw))
	for _, c := range raw {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return page.SetCookies(params)
}

func fail(err error) {
	out, _ := json.Marshal(failure{Error: err.Error()})
	os.Stderr.Write(out)
	os.Exit(1)
}
