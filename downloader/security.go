package downloader

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// reservedFlags are controlled by the runner or could make yt-dlp write or
// execute outside the attachment folder.
var reservedFlags = []string{
	"-o", "--output",
	"-P", "--paths",
	"-a", "--batch-file",
	"--exec", "--exec-before-download",
	"--config-location", "--config-locations",
	"--yes-playlist",
}

// SplitArgs splits an operator-supplied argument string without invoking a shell.
func SplitArgs(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid argument syntax: %w", err)
	}
	return args, nil
}

// ValidateExtraArgs rejects flags the runner owns and shell metacharacters.
func ValidateExtraArgs(args []string) error {
	for _, arg := range args {
		name := arg
		if i := strings.IndexByte(arg, '='); i > 0 && strings.HasPrefix(arg, "-") {
			name = arg[:i]
		}
		for _, reserved := range reservedFlags {
			if name == reserved {
				return fmt.Errorf("argument %s is managed by the downloader", arg)
			}
		}
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
	}
	return nil
}
