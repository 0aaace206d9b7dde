// Command querytool parses and evaluates a set-algebra query string
// against a small hard-coded set of named key-sets, either once
// (-query) or repeatedly in an interactive prompt.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/adtech/kvserving/internal/query"
)

var sampleSets = map[string]map[string]struct{}{
	"A": setOf("a", "b", "c"),
	"B": setOf("b", "c", "d"),
	"C": setOf("c", "d", "e"),
	"D": setOf("d", "e", "f"),
}

func setOf(elems ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		out[e] = struct{}{}
	}
	return out
}

type staticFetcher struct{}

func (staticFetcher) GetShardedKeyValueSet(ctx context.Context, identifiers []string) (map[string]map[string]struct{}, error) {
	out := make(map[string]map[string]struct{}, len(identifiers))
	for _, id := range identifiers {
		if set, ok := sampleSets[id]; ok {
			out[id] = set
		}
	}
	return out, nil
}

func main() {
	queryFlag := flag.String("query", "", "If provided, evaluates once and exits instead of entering interactive mode.")
	flag.Parse()

	engine := query.New(staticFetcher{}, nil)

	if *queryFlag != "" {
		processQuery(engine, *queryFlag)
		return
	}

	fmt.Println("/*\nSets available to query:")
	fmt.Println(describeSets())
	fmt.Println("*/")
	prompt(engine)
}

func processQuery(engine *query.Engine, q string) {
	elements, err := engine.RunQuery(context.Background(), q)
	if err != nil {
		fmt.Println(err)
		return
	}
	sort.Strings(elements)
	fmt.Printf("[%s]\n", strings.Join(elements, ","))
}

func prompt(engine *query.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(">> ")
		if !scanner.Scan() {
			return
		}
		processQuery(engine, scanner.Text())
	}
}

func describeSets() string {
	names := make([]string, 0, len(sampleSets))
	for name := range sampleSets {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("{\n")
	for _, name := range names {
		elems := make([]string, 0, len(sampleSets[name]))
		for e := range sampleSets[name] {
			elems = append(elems, e)
		}
		sort.Strings(elems)
		fmt.Fprintf(&b, "\t{%s, [%s]},\n", name, strings.Join(elems, ","))
	}
	b.WriteString("}")
	return b.String()
}
