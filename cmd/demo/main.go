// Command demo runs two sites in one process and synchronizes a shared
// document between them over the wire encoding, so the transformation
// behavior can be poked at interactively: edit either site, let the bundles
// pile up, then deliver them and watch both sides converge.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dyule/optra/pkg/docsync"
	"github.com/dyule/optra/pkg/journal"
	"github.com/dyule/optra/pkg/ot"
	"github.com/dyule/optra/pkg/store"
)

// site is one simulated participant: its manager, its document, and the
// encoded bundles waiting to be delivered to the other participant.
type site struct {
	name    string
	manager *docsync.Manager
	doc     *docsync.Document
	outbox  [][]byte
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dataRoot := flag.String("data", "", "journal directory; empty keeps everything in memory")
	reset := flag.Bool("reset", false, "wipe the journal directory before starting")
	debug := flag.Bool("debug", false, "log every bundle as it is delivered")
	flag.Parse()

	if !*debug {
		log.SetOutput(io.Discard)
	}

	sites, cleanup, err := setupSites(*dataRoot, *reset)
	if err != nil {
		return err
	}
	defer cleanup()

	printBanner(sites)
	printHelp()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		quit, err := handleCommand(sites, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
		if quit {
			break
		}
	}

	return scanner.Err()
}

const sharedDocID = "demo-document"

func setupSites(dataRoot string, reset bool) ([2]*site, func(), error) {
	var sites [2]*site
	var journals []*journal.Journal

	cleanup := func() {
		for _, j := range journals {
			j.Close()
		}
	}

	for i, name := range []string{"alpha", "beta"} {
		siteID := uint32(i + 1)
		var options []docsync.Option
		if dataRoot != "" {
			dir := filepath.Join(dataRoot, name)
			if reset {
				if err := os.RemoveAll(dir); err != nil {
					cleanup()
					return sites, nil, err
				}
			}
			j, err := journal.Open(dir)
			if err != nil {
				cleanup()
				return sites, nil, err
			}
			journals = append(journals, j)
			options = append(options, docsync.WithJournal(j))
		} else {
			j, err := openMemoryJournal()
			if err != nil {
				cleanup()
				return sites, nil, err
			}
			journals = append(journals, j)
			options = append(options, docsync.WithJournal(j))
		}

		manager := docsync.NewManager(siteID, options...)
		doc, err := manager.Track(sharedDocID)
		if err != nil {
			cleanup()
			return sites, nil, err
		}
		sites[i] = &site{name: name, manager: manager, doc: doc}
	}

	return sites, cleanup, nil
}

func openMemoryJournal() (*journal.Journal, error) {
	s, err := store.NewBadgerStore("", store.WithInMemory())
	if err != nil {
		return nil, err
	}
	return journal.New(s), nil
}

func printBanner(sites [2]*site) {
	fmt.Println("optra two-site sync demo")
	for _, s := range sites {
		fmt.Printf("site %-6s id=%d\n", s.name, s.manager.SiteID())
	}
	fmt.Println("edits stay local until you run sync; concurrent edits converge")
}

func printHelp() {
	fmt.Println("\ncommands:")
	fmt.Println("  help")
	fmt.Println("  show                      print both sites")
	fmt.Println("  ins <site> <pos> <text>   insert text at a byte offset")
	fmt.Println("  del <site> <pos> <len>    delete a byte range")
	fmt.Println("  sync                      deliver all pending bundles both ways")
	fmt.Println("  quit")
	fmt.Println("\nsites are named alpha and beta; try:")
	fmt.Println("  ins alpha 0 hello")
	fmt.Println("  ins beta 0 world")
	fmt.Println("  sync")
}

func handleCommand(sites [2]*site, line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}

	switch strings.ToLower(parts[0]) {
	case "help":
		printHelp()
		return false, nil

	case "show":
		for _, s := range sites {
			e := s.doc.Engine()
			fmt.Printf("%-6s %q  local=%d remote=%d pending=%d held=%d\n",
				s.name, s.doc.Content(), e.LocalTime(), e.RemoteTime(),
				len(s.outbox), s.doc.HeldCount())
		}
		return false, nil

	case "ins":
		if len(parts) < 4 {
			return false, fmt.Errorf("usage: ins <site> <pos> <text>")
		}
		s, err := pickSite(sites, parts[1])
		if err != nil {
			return false, err
		}
		pos, err := strconv.Atoi(parts[2])
		if err != nil {
			return false, fmt.Errorf("invalid position: %w", err)
		}
		text := strings.Join(parts[3:], " ")
		return false, s.edit(ot.Edit{Pos: pos, Insert: []byte(text)})

	case "del":
		if len(parts) != 4 {
			return false, fmt.Errorf("usage: del <site> <pos> <len>")
		}
		s, err := pickSite(sites, parts[1])
		if err != nil {
			return false, err
		}
		pos, err := strconv.Atoi(parts[2])
		if err != nil {
			return false, fmt.Errorf("invalid position: %w", err)
		}
		length, err := strconv.Atoi(parts[3])
		if err != nil {
			return false, fmt.Errorf("invalid length: %w", err)
		}
		return false, s.edit(ot.Edit{Pos: pos, Delete: length})

	case "sync":
		if err := exchange(sites); err != nil {
			return false, err
		}
		for _, s := range sites {
			fmt.Printf("%-6s %q\n", s.name, s.doc.Content())
		}
		return false, nil

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

func pickSite(sites [2]*site, name string) (*site, error) {
	for _, s := range sites {
		if s.name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown site %q, want alpha or beta", name)
}

func (s *site) edit(edits ...ot.Edit) error {
	seq, err := s.doc.Edit(edits...)
	if err != nil {
		return err
	}
	data, err := seq.Bytes()
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, data)
	fmt.Printf("%-6s %q  (%d bundle(s) pending)\n", s.name, s.doc.Content(), len(s.outbox))
	return nil
}

// exchange drains both outboxes through the wire encoding, like two peers
// flushing their send queues at each other.
func exchange(sites [2]*site) error {
	pending := [2][][]byte{sites[0].outbox, sites[1].outbox}
	sites[0].outbox = nil
	sites[1].outbox = nil

	for i, bundles := range pending {
		target := sites[1-i]
		for _, data := range bundles {
			seq, err := ot.TransactionSequenceFromBytes(data)
			if err != nil {
				return err
			}
			log.Printf("delivering %d operation(s) from %s to %s", seq.Len(), sites[i].name, target.name)
			if err := target.doc.Integrate(seq); err != nil {
				return err
			}
		}
	}
	return nil
}
