// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 DBTM Project

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/aryaw001/dbtm-station/pkg/measureapi"
)

// GetPassword retrieves the API password from the environment or prompts
// the user without echo.
func GetPassword() (string, error) {
	if pw := os.Getenv("DBTM_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// resolveUserID determines which API account owns the measurements:
// --user-id directly, or --email plus a password login.
func resolveUserID(ctx context.Context, client *measureapi.Client) (int, error) {
	if userID != 0 {
		return userID, nil
	}
	if email == "" {
		return 0, fmt.Errorf("either --user-id or --email must be specified")
	}

	password, err := GetPassword()
	if err != nil {
		return 0, err
	}

	user, err := client.Login(ctx, email, password)
	if err != nil {
		return 0, fmt.Errorf("login as %s: %w", email, err)
	}
	return user.ID, nil
}
