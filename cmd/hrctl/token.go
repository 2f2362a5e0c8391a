package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"employee-data-maintenance/internal/domain"
	"employee-data-maintenance/internal/usecase"
)

// tokenCmd はPAUトークンの確認・発行コマンド。
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Decode, verify and generate PAU JWTs",
	}
	cmd.AddCommand(tokenDecodeCmd(), tokenVerifyCmd(), tokenGenerateCmd())
	return cmd
}

func tokenDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode TOKEN",
		Short: "Show header and claims without checking the signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := usecase.NewTokenService(cfg.JWTSecret, cfg.JWTExpiration)
			info, err := svc.Decode(args[0])
			if err != nil {
				return err
			}
			return printTokenInfo(cmd.OutOrStdout(), info)
		},
	}
}

func tokenVerifyCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Check the signature and expiry of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = cfg.JWTSecret
			}
			svc := usecase.NewTokenService(secret, cfg.JWTExpiration)
			info, err := svc.Verify(args[0])
			if err != nil {
				if errors.Is(err, domain.ErrTokenExpired) && info != nil {
					if printErr := printTokenInfo(cmd.OutOrStdout(), info); printErr != nil {
						return printErr
					}
				}
				return err
			}
			if err := printTokenInfo(cmd.OutOrStdout(), info); err != nil {
				return err
			}
			if output != "json" {
				fmt.Fprintln(cmd.OutOrStdout(), "Signature valid.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (defaults to JWT_SECRET)")
	return cmd
}

func tokenGenerateCmd() *cobra.Command {
	var (
		identity domain.PAUIdentity
		ttl      time.Duration
		secret   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an HS512 token with PAU claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = cfg.JWTSecret
			}
			svc := usecase.NewTokenService(secret, cfg.JWTExpiration)
			token, err := svc.GenerateWithTTL(identity, ttl)
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&identity.Cedula, "cedula", "1000000001", "Cédula (identificacion claim)")
	cmd.Flags().StringVar(&identity.TipoDocumento, "tipo-documento", "1", "idtipodocumento claim")
	cmd.Flags().StringVar(&identity.Nombres, "nombres", "USUARIO", "nombres claim")
	cmd.Flags().StringVar(&identity.Apellidos, "apellidos", "PRUEBA", "apellidos claim")
	cmd.Flags().StringVar(&identity.Roles, "roles", "5", "idroles claim")
	cmd.Flags().StringVar(&identity.Pantallas, "pantallas", "16,67,42,12,13,14,15", "idpantallas claim")
	cmd.Flags().StringVar(&identity.Experience, "experience", "", "experience claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRATION)")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (defaults to JWT_SECRET)")
	return cmd
}

func printTokenInfo(w io.Writer, info *domain.TokenInfo) error {
	if output == "json" {
		return printJSON(w, info)
	}

	fmt.Fprintf(w, "Algorithm: %s\n", info.Algorithm)
	fmt.Fprintf(w, "Subject:   %s\n", info.Subject)
	fmt.Fprintf(w, "Cédula:    %s\n", info.Identity.Cedula)
	fmt.Fprintf(w, "Nombre:    %s %s\n", info.Identity.Nombres, info.Identity.Apellidos)
	fmt.Fprintf(w, "Roles:     %s\n", info.Identity.Roles)
	fmt.Fprintf(w, "Pantallas: %s\n", info.Identity.Pantallas)
	if info.IssuedAt != nil {
		fmt.Fprintf(w, "Issued:    %s\n", info.IssuedAt.Format(time.RFC3339))
	}
	if info.ExpiresAt != nil {
		fmt.Fprintf(w, "Expires:   %s (expired: %v)\n", info.ExpiresAt.Format(time.RFC3339), info.Expired)
	}

	fmt.Fprintln(w, "\nClaims:")
	keys := make([]string, 0, len(info.Claims))
	for k := range info.Claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := newTabWriter(w)
	for _, k := range keys {
		fmt.Fprintf(tw, "  %s\t%v\n", k, info.Claims[k])
	}
	return tw.Flush()
}
