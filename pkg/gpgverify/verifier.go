// Package gpgverify implements the signature verification worker: fork
// the external helper, classify its GnuPG status-protocol output into
// Good/Bad/Worthless/NoPubKey signer buckets, and decide success or
// failure from those buckets and the helper's exit code.
package gpgverify

import (
	"context"
	"net/url"
	"strings"

	"github.com/sabrina905990/apt/internal/logger"
	"github.com/sabrina905990/apt/pkg/acquire"
	"github.com/sabrina905990/apt/pkg/config"
)

const gnupgPrefix = "[GNUPG:] "

// Signers buckets the signer lines a helper run produced, kept separate
// in case finer-grained reporting is ever added for each bucket.
type Signers struct {
	Good      []string
	Bad       []string
	Worthless []string
	NoPubKey  []string
}

// Verifier implements acquire.URIAcquirer for the signature-verification
// method.
type Verifier struct {
	runner Runner
	cfg    *config.Store
	log    *logger.Logger
}

// NewVerifier builds a Verifier backed by a real forked helper process.
func NewVerifier(cfg *config.Store, log *logger.Logger) *Verifier {
	return &Verifier{runner: ExecRunner{}, cfg: cfg, log: log}
}

// NewVerifierWithRunner builds a Verifier backed by a caller-supplied
// Runner, for tests that want to fake the helper's output and exit code.
func NewVerifierWithRunner(runner Runner, cfg *config.Store, log *logger.Logger) *Verifier {
	return &Verifier{runner: runner, cfg: cfg, log: log}
}

// URIAcquire verifies the detached or clearsigned file named by item and,
// on success, reports the concatenated signer lines in the result.
func (v *Verifier) URIAcquire(ctx context.Context, m *acquire.Method, item acquire.FetchItem) error {
	res := acquire.FetchResult{Filename: item.Filename}
	_ = m.URIStart(item.URI, 0, res.LastModified, 0)

	u, err := url.Parse(item.URI)
	if err != nil {
		return m.Fail(item.URI, err.Error())
	}
	// Host+Path, so a relative file:// path (empty Host) still resolves.
	path := u.Host + u.Path

	helperPath := v.cfg.Find("Acquire::gpgv::Path", "/usr/bin/gpgv")
	args := buildHelperArgs(path, item.Filename, item.SignedBy)

	stdout, exitCode, err := v.runner.Run(ctx, helperPath, args)
	if err != nil {
		return m.Fail(item.URI, err.Error())
	}

	var signers Signers
	for _, line := range strings.Split(string(stdout), "\n") {
		classifyLine(line, &signers)
	}

	if v.log != nil {
		v.log.Debugf("verification helper exited with status %d", exitCode)
	}

	if len(signers.Good) == 0 || len(signers.Bad) > 0 {
		return m.Fail(item.URI, explainFailure(signers, exitCode))
	}

	res.SignerLines = append(res.SignerLines, signers.Good...)
	res.SignerLines = append(res.SignerLines, signers.Bad...)
	res.SignerLines = append(res.SignerLines, signers.NoPubKey...)
	return m.URIDone(item.URI, res)
}

// buildHelperArgs assembles the verification helper's command line:
// status output goes to fd 3 (wired up by the Runner), an optional
// signing-key reference becomes an extra keyring, and the signed file is
// the final positional argument.
func buildHelperArgs(signedFile, outputFile, key string) []string {
	args := []string{"--status-fd=3"}
	if key != "" {
		args = append(args, "--keyring", key)
	}
	if outputFile != "" {
		args = append(args, "--output", outputFile)
	}
	return append(args, signedFile)
}

// classifyLine routes one line of helper status output into Signers.
// The NODATA check's prefix happens to be the same length as BADSIG's,
// and GOODSIG's key ID is taken as the run of hex digits immediately
// following the keyword, dropping everything from the first non-hex
// character on.
func classifyLine(line string, s *Signers) {
	switch {
	case strings.HasPrefix(line, "[GNUPG:] BADSIG"):
		s.Bad = append(s.Bad, strings.TrimPrefix(line, gnupgPrefix))
	case strings.HasPrefix(line, "[GNUPG:] NO_PUBKEY"):
		s.NoPubKey = append(s.NoPubKey, strings.TrimPrefix(line, gnupgPrefix))
	case strings.HasPrefix(line, "[GNUPG:] NODATA"):
		s.Bad = append(s.Bad, strings.TrimPrefix(line, gnupgPrefix))
	case strings.HasPrefix(line, "[GNUPG:] KEYEXPIRED"):
		s.Worthless = append(s.Worthless, strings.TrimPrefix(line, gnupgPrefix))
	case strings.HasPrefix(line, "[GNUPG:] REVKEYSIG"):
		s.Worthless = append(s.Worthless, strings.TrimPrefix(line, gnupgPrefix))
	case strings.HasPrefix(line, "[GNUPG:] GOODSIG"):
		s.Good = append(s.Good, extractGoodSigKeyID(line))
	}
}

func extractGoodSigKeyID(line string) string {
	rest := strings.TrimPrefix(line, "[GNUPG:] GOODSIG")
	rest = strings.TrimPrefix(rest, " ")
	end := 0
	for end < len(rest) && isHexDigit(rest[end]) {
		end++
	}
	return rest[:end]
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// exitMessage maps the helper's exit code to a fixed diagnostic string,
// used as a fallback when no signer line explains the failure better.
func exitMessage(exitCode int, haveGood bool) string {
	switch exitCode {
	case 0:
		if !haveGood {
			return "Internal error: Good signature, but could not determine key fingerprint?!"
		}
		return ""
	case 1:
		return "At least one invalid signature was encountered."
	case 111:
		return "Could not execute the signature verification helper (is it installed?)"
	case 112:
		return "Clearsigned file isn't valid, got 'NODATA' (does the network require authentication?)"
	default:
		return "Unknown error executing the signature verification helper"
	}
}

// explainFailure builds the Fail message: signer-line detail when any
// bad/worthless/no-pubkey signers were seen, else the exit-code message.
func explainFailure(s Signers, exitCode int) string {
	if len(s.Bad) == 0 && len(s.Worthless) == 0 && len(s.NoPubKey) == 0 {
		return exitMessage(exitCode, len(s.Good) > 0)
	}

	var b strings.Builder
	if len(s.Bad) > 0 {
		b.WriteString("The following signatures were invalid:\n")
		for _, l := range s.Bad {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	if len(s.Worthless) > 0 {
		b.WriteString("The following signatures were invalid:\n")
		for _, l := range s.Worthless {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	if len(s.NoPubKey) > 0 {
		b.WriteString("The following signatures couldn't be verified because the public key is not available:\n")
		for _, l := range s.NoPubKey {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	return b.String()
}
