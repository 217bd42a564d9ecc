package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSessionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show whether the stored login session can be reused",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.sessionManager()
			if err != nil {
				return err
			}
			sess, err := m.Load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if sess == nil {
				fmt.Fprintln(out, "no stored session; the next crawl will log in")
				return nil
			}

			primary := e.cfg.Site().PrimaryCookie
			c, ok := sess.Cookie(primary)
			switch {
			case !ok:
				fmt.Fprintf(out, "%d cookies stored, %s missing\n", len(sess.Cookies), primary)
			case m.IsValid(sess):
				fmt.Fprintf(out, "valid: %s expires %s\n", primary, c.ExpiresAt().Local().Format(time.DateTime))
			default:
				fmt.Fprintf(out, "expired: %s expired %s\n", primary, c.ExpiresAt().Local().Format(time.DateTime))
			}
			fmt.Fprintf(out, "%d localStorage entries\n", len(sess.Storage))
			return nil
		},
	}
}
