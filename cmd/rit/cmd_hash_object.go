package main

import (
	"fmt"
	"io"
	"os"

	"github.com/odvcencio/rit/pkg/object"
	"github.com/odvcencio/rit/pkg/repo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// typeFlag parses -t values into an object.Type.
type typeFlag struct {
	t object.Type
}

var _ pflag.Value = (*typeFlag)(nil)

func (f *typeFlag) String() string { return f.t.String() }

func (f *typeFlag) Set(s string) error {
	t, err := object.ParseType(s)
	if err != nil {
		return err
	}
	f.t = t
	return nil
}

func (f *typeFlag) Type() string { return "type" }

func newHashObjectCmd() *cobra.Command {
	objType := &typeFlag{t: object.TypeBlob}
	var (
		write bool
		stdin bool
	)

	cmd := &cobra.Command{
		Use:   "hash-object [-t type] [-w] (--stdin | <file>...)",
		Short: "Compute object digests and optionally store the objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdin == (len(args) > 0) {
				return fmt.Errorf("hash-object: give either --stdin or at least one file")
			}
			logger := loggerFor(cmd)

			// The digest is printed before the repository is looked up, so
			// hashing works outside any repository.
			var store *object.Store
			hashOne := func(source string, data []byte) error {
				f := object.Encode(objType.t, data)
				h := f.Digest()
				fmt.Fprintln(cmd.OutOrStdout(), h)
				if !write {
					return nil
				}
				if store == nil {
					r, err := repo.Open(".", repo.WithLogger(logger))
					if err != nil {
						return err
					}
					store = r.Store
				}
				res, err := store.Persist(f, h)
				if err != nil {
					return err
				}
				logger.Info("wrote object",
					zap.String("source", source),
					zap.Int("bytes", res.Bytes),
					zap.String("path", res.Path),
					zap.Bool("reused", res.Reused),
				)
				return nil
			}

			if stdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return &inputError{source: "stdin", err: err}
				}
				return hashOne("stdin", data)
			}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return &inputError{source: path, err: err}
				}
				if err := hashOne(path, data); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().VarP(objType, "type", "t", "object type: blob, tree, tag or commit")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the object into the repository object store")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read the payload from standard input")
	return cmd
}
