// Command cadencectl is a thin RPC client over cadenced's HTTP/JSON
// surface. It carries no invariants of its own: every subcommand is a
// direct POST to /rpc/<family>/<verb> with the optional second argument
// sent as the JSON body ("{}" when absent), and the response is printed,
// indented when it is valid JSON.
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
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:7700", "cadenced RPC address")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: cadencectl [-addr http://host:port] <family.verb> [json-body]")
		os.Exit(2)
	}

	familyVerb := args[0]
	parts := strings.SplitN(familyVerb, ".", 2)
	if len(parts) != 2 {
		fmt.Fprintf(os.Stderr, "expected <family>.<verb>, got %q\n", familyVerb)
		os.Exit(2)
	}

	body := []byte("{}")
	if len(args) > 1 {
		body = []byte(args[1])
	}
	if !json.Valid(body) {
		fmt.Fprintf(os.Stderr, "request body is not valid JSON: %s\n", body)
		os.Exit(2)
	}

	url := fmt.Sprintf("%s/rpc/%s/%s", strings.TrimRight(*addr, "/"), parts[0], parts[1])
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read response failed: %v\n", err)
		os.Exit(1)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, out, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(out))
	}

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}
