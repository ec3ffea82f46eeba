package main

import (
	"encoding/json"
	"fmt"

	persist "github.com/goliatone/go-persist"
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the stored JSON text of a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, ok, err := a.store.GetItem(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Fprintln(a.out, text)
			return nil
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY JSON",
		Short: "Replace the value of a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return fmt.Errorf("value is not valid JSON: %w", err)
			}
			opts, err := a.options("")
			if err != nil {
				return err
			}
			c, err := persist.New[any](a.store, args[0], nil, opts...)
			if err != nil {
				return err
			}
			if err := c.Set(value); err != nil {
				return err
			}
			return printStored(a, c)
		},
	}
}

func newIncrCmd(a *app) *cobra.Command {
	var by float64
	cmd := &cobra.Command{
		Use:   "incr KEY",
		Short: "Increment a numeric slot, starting from 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options("")
			if err != nil {
				return err
			}
			counter, err := persist.New(a.store, args[0], 0.0, opts...)
			if err != nil {
				return err
			}
			if err := counter.Update(func(n *float64) error {
				*n += by
				return nil
			}); err != nil {
				return err
			}
			return printStored(a, counter)
		},
	}
	cmd.Flags().Float64Var(&by, "by", 1, "amount to add")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm KEY",
		Aliases: []string{"remove"},
		Short:   "Delete a slot",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remover, ok := a.store.(persist.Remover)
			if !ok {
				return persist.ErrRemoveUnsupported
			}
			return remover.RemoveItem(args[0])
		},
	}
}

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lister, ok := a.store.(persist.Lister)
			if !ok {
				return persist.ErrListUnsupported
			}
			keys, err := lister.Keys()
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Fprintln(a.out, key)
			}
			return nil
		},
	}
}

func newEvalCmd(a *app) *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "eval KEY EXPR",
		Short: "Evaluate an expression against a slot",
		Long: `Evaluate an expression against the stored value of KEY.

The value is bound as "value"; when it is an object its fields are also bound
by name. "key" holds the slot key.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options(engine)
			if err != nil {
				return err
			}
			c, err := persist.New[any](a.store, args[0], nil, opts...)
			if err != nil {
				return err
			}
			resp, err := c.Evaluate(args[1])
			if err != nil {
				return err
			}
			out, err := json.Marshal(resp.Value)
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			fmt.Fprintln(a.out, string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "expression engine (expr, cel, js)")
	return cmd
}

func printStored[T any](a *app, c *persist.Container[T]) error {
	text, _, err := c.Stored()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, text)
	return nil
}
