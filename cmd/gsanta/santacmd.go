package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"github.com/tos-network/gsanta/cmd/utils"
	"github.com/tos-network/gsanta/internal/santaapi"
	"github.com/tos-network/gsanta/santa"
	"github.com/urfave/cli/v2"
)

var (
	nameFlag = &cli.StringFlag{
		Name:     "name",
		Usage:    "Name of the gift exchange",
		Required: true,
	}
	descriptionFlag = &cli.StringFlag{
		Name:  "description",
		Usage: "Free form description",
	}
	participantsFlag = &cli.StringFlag{
		Name:  "participants",
		Usage: "Number of participants",
	}
	budgetFlag = &cli.StringFlag{
		Name:  "budget",
		Usage: "Gift budget, stored encrypted",
	}
	mineFlag = &cli.BoolFlag{
		Name:  "mine",
		Usage: "Only list exchanges created by the configured wallet",
	}

	createCommand = &cli.Command{
		Action: create,
		Name:   "create",
		Usage:  "Create a gift exchange with an encrypted budget",
		Flags:  []cli.Flag{nameFlag, descriptionFlag, participantsFlag, budgetFlag},
		Description: `
The budget is encrypted by the key management service before the record is
written; only its public mirror is stored in the clear until it is revealed.`,
	}
	revealCommand = &cli.Command{
		Action:    reveal,
		Name:      "reveal",
		Usage:     "Reveal the encrypted budget of a gift exchange",
		ArgsUsage: "<id>",
	}
	listCommand = &cli.Command{
		Action: list,
		Name:   "list",
		Usage:  "List gift exchanges",
		Flags:  []cli.Flag{mineFlag},
	}
	statsCommand = &cli.Command{
		Action: stats,
		Name:   "stats",
		Usage:  "Show totals over all gift exchanges",
	}
	checkCommand = &cli.Command{
		Action: check,
		Name:   "check",
		Usage:  "Check that the confidential system is available",
	}
	serveCommand = &cli.Command{
		Action: serve,
		Name:   "serve",
		Usage:  "Serve the HTTP API",
		Flags:  utils.HTTPFlags,
	}
)

// withStack runs fn against a connected, initialized backend.
func withStack(ctx *cli.Context, fn func(rootCtx context.Context, s *stack) error) error {
	rootCtx, cancel := commandContext(ctx)
	defer cancel()

	s, err := makeStack(ctx, rootCtx)
	if err != nil {
		return err
	}
	defer s.Close()

	s.connect()
	if err := s.backend.EnsureReady(rootCtx); err != nil {
		return err
	}
	return fn(rootCtx, s)
}

func create(ctx *cli.Context) error {
	return withStack(ctx, func(rootCtx context.Context, s *stack) error {
		s.backend.OpenForm()
		id, err := s.backend.Submit(rootCtx, santa.Form{
			Name:         ctx.String(nameFlag.Name),
			Description:  ctx.String(descriptionFlag.Name),
			Participants: ctx.String(participantsFlag.Name),
			Budget:       ctx.String(budgetFlag.Name),
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	})
}

func reveal(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("reveal needs exactly one record id")
	}
	return withStack(ctx, func(rootCtx context.Context, s *stack) error {
		res, err := s.backend.Reveal(rootCtx, ctx.Args().First())
		if err != nil {
			return err
		}
		if !res.Known {
			fmt.Println("verified by another party, run list to see the value")
			return nil
		}
		fmt.Println(res.Value)
		return nil
	})
}

func list(ctx *cli.Context) error {
	return withStack(ctx, func(rootCtx context.Context, s *stack) error {
		if err := s.backend.Refresh(rootCtx); err != nil {
			return err
		}
		records := s.backend.Model().Records()
		if ctx.Bool(mineFlag.Name) {
			records = s.backend.History()
		}
		printRecords(os.Stdout, records)
		return nil
	})
}

func stats(ctx *cli.Context) error {
	return withStack(ctx, func(rootCtx context.Context, s *stack) error {
		if err := s.backend.Refresh(rootCtx); err != nil {
			return err
		}
		printStats(os.Stdout, s.backend.Stats())
		return nil
	})
}

func check(ctx *cli.Context) error {
	return withStack(ctx, func(rootCtx context.Context, s *stack) error {
		if _, err := s.backend.CheckAvailability(rootCtx); err != nil {
			return err
		}
		fmt.Println(s.backend.Status().Current().Message)
		return nil
	})
}

func serve(ctx *cli.Context) error {
	return withStack(ctx, func(_ context.Context, s *stack) error {
		// The server runs until interrupted, not until --timeout.
		serveCtx, cancel := signalContext()
		defer cancel()

		s.backend.Start(serveCtx)
		handler := santaapi.NewHandler(s.backend, s.cfg.HTTP.CORSOrigins)
		log.Info("Serving gift exchange API", "addr", s.cfg.HTTP.Addr, "account", s.account)
		return santaapi.Serve(serveCtx, s.cfg.HTTP.Addr, handler)
	})
}

func printRecords(w io.Writer, records []santa.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Participants", "Budget", "Created", "Creator", "Revealed"})
	for _, rec := range records {
		revealed := "-"
		if rec.RevealedValue != nil {
			revealed = strconv.FormatUint(*rec.RevealedValue, 10)
		}
		table.Append([]string{
			rec.ID,
			rec.Name,
			strconv.FormatUint(rec.Participants, 10),
			strconv.FormatUint(rec.Budget, 10),
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.Creator.Hex(),
			revealed,
		})
	}
	table.Render()
}

func printStats(w io.Writer, st santa.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.AppendBulk([][]string{
		{"Total events", strconv.Itoa(st.TotalEvents)},
		{"Total participants", strconv.FormatUint(st.TotalParticipants, 10)},
		{"Total budget", strconv.FormatUint(st.TotalBudget, 10)},
		{"Verified events", strconv.Itoa(st.VerifiedEvents)},
		{"Your events", strconv.Itoa(st.UserEvents)},
	})
	table.Render()
}
