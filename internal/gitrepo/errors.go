package gitrepo

import (
	"strings"

	"git.home.luguber.info/inful/docpages/internal/errors"
)

// ClassifyGitError translates go-git errors into classified PipelineErrors so
// retry and reporting logic never parse error strings upstream.
func ClassifyGitError(err error, op string, url string) error {
	if err == nil {
		return nil
	}

	// Already classified
	if _, ok := errors.AsPipelineError(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())

	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "not authorized") ||
		strings.Contains(l, "invalid username or password") || strings.Contains(l, "invalid credentials"):
		return errors.Wrap(err, errors.CategoryAuth, errors.SeverityFatal, "git authentication failed").
			WithContext("op", op).WithContext("url", url)

	case strings.Contains(l, "repository not found") || strings.Contains(l, "not found") ||
		strings.Contains(l, "repository does not exist"):
		return errors.Wrap(err, errors.CategoryGit, errors.SeverityFatal, "repository not found").
			WithContext("op", op).WithContext("url", url)

	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return errors.WrapRetryable(err, errors.CategoryNetwork, errors.SeverityError, "remote rate limited").
			WithContext("op", op).WithContext("url", url).WithContext("rate_limit", true)

	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") ||
		strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout") ||
		strings.Contains(l, "no route to host") || strings.Contains(l, "connection refused") ||
		strings.Contains(l, "temporary failure"):
		return errors.WrapRetryable(err, errors.CategoryNetwork, errors.SeverityError, "transient network failure").
			WithContext("op", op).WithContext("url", url)

	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "unsupported transport protocol").
			WithContext("op", op).WithContext("url", url)

	default:
		return errors.Wrap(err, errors.CategoryGit, errors.SeverityError, "git operation failed").
			WithContext("op", op).WithContext("url", url)
	}
}
