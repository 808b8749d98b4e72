package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/fernlang/fernhost/hostfn"
)

var storeCmd = &cobra.Command{
	Use:   "store [dir]",
	Short: "Inspect and edit a storage directory interactively",
	Long: `Open an interactive shell over a program's storage directory, the
same keyed blobs its Storage effects see.

Commands:
  list                 show all keys
  get <key>            print a value
  set <key> <value>    write a value
  delete <key>         remove a key
  exists <key>         check for a key

Type 'exit' or 'quit' to leave, or press Ctrl+D.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStore,
}

func init() {
	storeCmd.Flags().String("history", "", "History file path (default: ~/.fernhost_history)")
	rootCmd.AddCommand(storeCmd)
}

func runStore(cmd *cobra.Command, args []string) {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".fernhost_history")
	}

	store, err := hostfn.NewDirStore(dir)
	if err != nil {
		fatal(err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "store> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fatal(fmt.Errorf("initialize readline: %w", err))
	}
	defer rl.Close()

	fmt.Fprintf(os.Stderr, "fernhost store shell on %s (type 'exit' to quit, Ctrl+D to exit)\n", store.Dir())

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println()
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := storeCommand(store, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func storeCommand(store *hostfn.DirStore, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "list", "ls":
		keys, err := store.List()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("(empty)")
			return nil
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		value, err := store.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Println(string(value))
		return nil

	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		return store.Save(args[0], []byte(strings.Join(args[1:], " ")))

	case "delete", "del", "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <key>")
		}
		return store.Delete(args[0])

	case "exists":
		if len(args) != 1 {
			return fmt.Errorf("usage: exists <key>")
		}
		ok, err := store.Exists(args[0])
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil

	case "help":
		fmt.Println("commands: list, get <key>, set <key> <value>, delete <key>, exists <key>, exit")
		return nil

	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}
