package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type hashOptions struct {
	Cost int
	// Email, Name and Role, when Email is set, print a full DEV_AUTH_USERS entry.
	Email string
	Name  string
	Role  int
}

func parseHashFlags(args []string) (hashOptions, error) {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var opts hashOptions
	fs.IntVar(&opts.Cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	fs.StringVar(&opts.Email, "email", "", "print a complete user entry for this email")
	fs.StringVar(&opts.Name, "name", "", "display name for the user entry")
	fs.IntVar(&opts.Role, "role", 2, "role for the user entry (1 = administrator)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Cost < bcrypt.MinCost || opts.Cost > bcrypt.MaxCost {
		return opts, fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return opts, nil
}

// runHashPassword reads one password line from stdin and prints its hash.
func runHashPassword(cmdCtx *commandContext, args []string) error {
	opts, err := parseHashFlags(args)
	if err != nil {
		return err
	}

	line, err := bufio.NewReader(cmdCtx.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password is empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), opts.Cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if opts.Email == "" {
		return writeln(cmdCtx.Stdout, string(hash))
	}
	name := opts.Name
	if name == "" {
		name = opts.Email
	}
	return writef(cmdCtx.Stdout, "%s:%s:%s:%d\n", opts.Email, hash, name, opts.Role)
}
