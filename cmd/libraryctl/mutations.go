package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/library"
)

// mutationOutput is printed by every mutation command.
type mutationOutput struct {
	ID          string      `json:"id"`
	Mutation    string      `json:"mutation"`
	Invalidates []cache.Tag `json:"invalidates"`
	Result      any         `json:"result,omitempty"`
}

func newMutationOutput(res *cache.MutationResult, result any) mutationOutput {
	return mutationOutput{
		ID:          res.ID,
		Mutation:    res.Name,
		Invalidates: res.Invalidates,
		Result:      result,
	}
}

func bookInputFlags(cmd *cobra.Command, in *library.BookInput) {
	cmd.Flags().StringVar(&in.Title, "title", "", "book title")
	cmd.Flags().StringVar(&in.Author, "author", "", "book author")
	cmd.Flags().StringVar(&in.ISBN, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&in.Location, "location", "", "shelf location")
}

func newAddBookCmd(a *app) *cobra.Command {
	var in library.BookInput
	cmd := &cobra.Command{
		Use:     "add-book",
		Short:   "Add a book to the catalogue",
		GroupID: "mutation",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			book, res, err := a.client.AddBook(ctx, in)
			if err != nil {
				return err
			}
			return a.print(newMutationOutput(res, book))
		},
	}
	bookInputFlags(cmd, &in)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newUpdateBookCmd(a *app) *cobra.Command {
	var (
		in     library.BookInput
		status string
	)
	cmd := &cobra.Command{
		Use:     "update-book ID",
		Short:   "Change a book's fields",
		GroupID: "mutation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book id", args[0])
			if err != nil {
				return err
			}
			in.Status = library.BookStatus(status)
			ctx, cancel := a.context(cmd)
			defer cancel()
			book, res, err := a.client.UpdateBook(ctx, id, in)
			if err != nil {
				return err
			}
			return a.print(newMutationOutput(res, book))
		},
	}
	bookInputFlags(cmd, &in)
	cmd.Flags().StringVar(&status, "status", "", "available|borrowed|reserved")
	return cmd
}

func newDeleteBookCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete-book ID",
		Short:   "Remove a book",
		GroupID: "mutation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			res, err := a.client.DeleteBook(ctx, id)
			if err != nil {
				return err
			}
			return a.print(newMutationOutput(res, nil))
		},
	}
}

func newBorrowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "borrow BOOK_ID USER_ID",
		Short:   "Lend a book to a user",
		GroupID: "mutation",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, userID, err := parseLoanArgs(args)
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			res, err := a.client.BorrowBook(ctx, bookID, userID)
			if err != nil {
				return err
			}
			return a.print(newMutationOutput(res, rawResult(res)))
		},
	}
}

func newReturnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "return BOOK_ID USER_ID",
		Short:   "End a loan",
		GroupID: "mutation",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, userID, err := parseLoanArgs(args)
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			res, err := a.client.ReturnBook(ctx, bookID, userID)
			if err != nil {
				return err
			}
			return a.print(newMutationOutput(res, rawResult(res)))
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	var creds library.Credentials
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Exchange credentials for a session token",
		Long:    "Log in and print the session token. Export it as LIBRARY_API_TOKEN for later commands.",
		GroupID: "mutation",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			resp, err := a.client.Login(ctx, creds)
			if err != nil {
				return err
			}
			return a.print(resp)
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func parseLoanArgs(args []string) (int, int, error) {
	bookID, err := parseID("book id", args[0])
	if err != nil {
		return 0, 0, err
	}
	userID, err := parseID("user id", args[1])
	if err != nil {
		return 0, 0, err
	}
	return bookID, userID, nil
}

// rawResult returns the mutation payload as raw JSON, or nil when empty.
func rawResult(res *cache.MutationResult) any {
	if len(res.Payload) == 0 {
		return nil
	}
	return json.RawMessage(res.Payload)
}
