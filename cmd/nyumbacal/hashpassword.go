package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"nyumbacal/internal/auth"
)

// hashPassword handles the hash-password subcommand: it prompts for a
// username and password and prints the basic_auth block for config.yaml.
func hashPassword(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	insecureUnmask := fs.Bool("insecure-unmask-password", false, "Show password as plain text (INSECURE!)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nyumbacal hash-password [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Prints an Argon2id basic_auth block for config.yaml.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	fmt.Print("Enter username: ")
	var username string
	if _, err := fmt.Scanln(&username); err != nil || username == "" {
		fmt.Fprintf(os.Stderr, "Username cannot be empty\n")
		os.Exit(1)
	}

	var password, confirm string
	if *insecureUnmask {
		fmt.Fprintf(os.Stderr, "WARNING: password will be visible on screen\n")
		fmt.Print("Enter password:   ")
		_, _ = fmt.Scanln(&password)
		fmt.Print("Confirm password: ")
		_, _ = fmt.Scanln(&confirm)
	} else {
		password = readPasswordWithMask("Enter password:   ")
		confirm = readPasswordWithMask("Confirm password: ")
	}

	if password == "" {
		fmt.Fprintf(os.Stderr, "Password cannot be empty\n")
		os.Exit(1)
	}
	if password != confirm {
		fmt.Fprintf(os.Stderr, "Passwords do not match\n")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nbasic_auth:\n  username: %s\n  password_hash: %q\n", username, hash)
}

// readPasswordWithMask echoes '*' per character. It falls back to fully
// hidden input when the terminal cannot be put in raw mode.
func readPasswordWithMask(prompt string) string {
	fmt.Print(prompt)

	fd := int(syscall.Stdin)
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		password, _ := term.ReadPassword(fd)
		fmt.Println()
		return string(password)
	}
	defer term.Restore(fd, oldState)

	var password []byte
	reader := bufio.NewReader(os.Stdin)
	for {
		char, _, err := reader.ReadRune()
		if err != nil {
			break
		}
		switch char {
		case '\n', '\r':
			fmt.Print("\r\n")
			return string(password)
		case 127, 8:
			if len(password) > 0 {
				password = password[:len(password)-1]
				fmt.Print("\b \b")
			}
		case 3: // Ctrl+C
			term.Restore(fd, oldState)
			fmt.Println()
			os.Exit(1)
		default:
			if char >= 32 && char <= 126 {
				password = append(password, byte(char))
				fmt.Print("*")
			}
		}
	}
	fmt.Print("\r\n")
	return string(password)
}
