package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mauv0809/dcf/internal/analyst"
	"github.com/mauv0809/dcf/internal/handlers"
	"github.com/mauv0809/dcf/internal/watchlist"
)

func newValueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "value TICKER",
		Short: "Value a company at its most recent statement date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(true)
			if err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}
			v, err := svc.Value(cmd.Context(), a.request(args[0]))
			if err != nil {
				return err
			}
			return r.Valuation(a.stdout, v)
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history TICKER",
		Short: "Value a company at every statement date over --history-years",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(true)
			if err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}
			h, err := svc.History(cmd.Context(), a.request(args[0]))
			if err != nil {
				return err
			}
			return r.History(a.stdout, h)
		},
	}
}

func newBatchCmd(a *app) *cobra.Command {
	var filterExpr string
	var workers int
	cmd := &cobra.Command{
		Use:   "batch FILE.yaml",
		Short: "Value every ticker of a watchlist file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wl, err := watchlist.Load(args[0])
			if err != nil {
				return err
			}
			f, err := watchlist.ParseFilter(filterExpr)
			if err != nil {
				return err
			}
			wl = wl.Select(f)
			if len(wl.Items) == 0 {
				return fmt.Errorf("no tickers in %s match %q", args[0], filterExpr)
			}

			if cmd.Flags().Changed("workers") {
				a.cfg.BatchWorkers = workers
			}
			svc, err := a.service(false)
			if err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}

			reqs := make([]analyst.Request, 0, len(wl.Items))
			for _, it := range wl.Items {
				req := a.request(it.Sym)
				req.Params = it.Parameters(a.cfg.Params)
				if it.Period != "" {
					req.Period = it.Period
				}
				reqs = append(reqs, req)
			}

			a.logger.Info().Str("watchlist", wl.Name).Int("tickers", len(reqs)).Msg("starting batch")
			items := svc.Batch(cmd.Context(), reqs)
			if err := r.Batch(a.stdout, items); err != nil {
				return err
			}
			for _, it := range items {
				if it.Err == nil {
					return nil
				}
			}
			return errors.New("every ticker failed")
		},
	}
	cmd.Flags().StringVar(&filterExpr, "filter", "", "select tickers or groups: A,B exact, glob, /regex/ or substring")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "tickers valued in parallel")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the valuation API and web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.ServerPort = port
			}
			svc, err := a.service(false)
			if err != nil {
				return err
			}

			defaults := handlers.Defaults{Params: a.cfg.Params, Period: a.cfg.Period, HistoryYears: a.cfg.HistoryYears}
			e := handlers.NewServer(
				handlers.New(a.cfg.Params),
				handlers.NewValuationHandler(svc, defaults, a.logger),
				a.logger,
			)

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().Str("port", a.cfg.ServerPort).Msg("starting server")
				errCh <- e.Start(":" + a.cfg.ServerPort)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server: %w", err)
			case <-cmd.Context().Done():
			}

			a.logger.Info().Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "8080", "listen port (or PORT)")
	return cmd
}
