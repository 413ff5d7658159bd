/*
 * Copyright (c) 2026 RaftKV Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
raftkv-console - Interactive RaftKV State Console

An offline readline console over a node's data directory. Inspects the
applied key/value database, the replicated log, and the persisted consensus
state without touching the live socket.

Commands:
    get <key>      look up a key in the applied database
    keys           list applied keys in collation order
    log [n]        show the last n log entries (default 10)
    state          show term, vote, and log summary
    help           show this list
    exit           leave the console
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"raftkv/internal/store"
	"raftkv/pkg/cli"
)

func main() {
	dataDir := flag.String("data", "", "node data directory (required)")
	collation := flag.String("collation", "binary", "key ordering: binary, nocase, unicode")
	locale := flag.String("locale", "en", "locale for unicode collation")
	flag.Parse()

	if *dataDir == "" {
		(&cli.CLIError{
			Message:     "--data is required",
			Suggestions: []string{"raftkv-console --data data/5001"},
			ExitCode:    1,
		}).Exit()
	}

	st, err := store.Open(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", cli.ErrorIcon(), cli.Error(err.Error()))
		os.Exit(1)
	}
	collator := store.GetCollator(*collation, *locale)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cli.Highlight("raftkv> "),
		HistoryFile:     filepath.Join(os.TempDir(), ".raftkv_console_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("get"),
			readline.PcItem("keys"),
			readline.PcItem("log"),
			readline.PcItem("state"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", cli.ErrorIcon(), cli.Error(err.Error()))
		os.Exit(1)
	}
	defer rl.Close()

	cli.PrintInfo("RaftKV console over %s — 'help' lists commands", *dataDir)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "get":
			if len(fields) != 2 {
				cli.PrintWarning("usage: get <key>")
				continue
			}
			if value, ok := st.Get(fields[1]); ok {
				fmt.Println(value)
			} else {
				cli.PrintWarning("key %q not found", fields[1])
			}

		case "keys":
			for _, key := range st.Keys(collator) {
				fmt.Println(key)
			}

		case "log":
			n := 10
			if len(fields) > 1 {
				if parsed, err := strconv.Atoi(fields[1]); err == nil && parsed > 0 {
					n = parsed
				}
			}
			printLog(st, n)

		case "state":
			printState(st)

		case "help":
			fmt.Println("commands: get <key>, keys, log [n], state, help, exit")

		case "exit", "quit":
			return

		default:
			cli.PrintWarning("unknown command %q — 'help' lists commands", fields[0])
		}
	}
}

func printLog(st *store.Store, n int) {
	log := st.Log()
	if len(log) == 0 {
		fmt.Println("(empty log)")
		return
	}
	if len(log) > n {
		log = log[len(log)-n:]
	}
	table := cli.NewTable("INDEX", "TERM", "KEY", "VALUE")
	for _, e := range log {
		table.AddRow(fmt.Sprint(e.Index), fmt.Sprint(e.Term), e.Key, e.Value)
	}
	table.Print()
}

func printState(st *store.Store) {
	votedFor := "(none)"
	if v := st.VotedFor(); v != nil {
		votedFor = v.String()
	}
	cli.KeyValue("Current term", fmt.Sprint(st.CurrentTerm()), 14)
	cli.KeyValue("Voted for", votedFor, 14)
	cli.KeyValue("Log entries", fmt.Sprint(st.LogLen()), 14)
	last := st.LastEntry()
	cli.KeyValue("Last entry", fmt.Sprintf("index %d, term %d", last.Index, last.Term), 14)
}
