// Package flagx lets several config layers read their own flags out of the
// same command line without tripping over each other's.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs keeps only the allowedFlags from args, together with their
// values. Both "-c conf.json" and "-c=conf.json" forms are recognized; a
// token starting with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// lookupString returns the value of a flag that has a short and a long
// spelling. The last occurrence wins; absent means "".
func lookupString(args []string, short, long, usage string) string {
	var v string

	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&v, long, "", usage)
	fs.StringVar(&v, short, "", usage)
	_ = fs.Parse(FilterArgs(args, []string{"-" + short, "-" + long}))

	return v
}

// JsonConfigFlags returns the path given by -c or -config, or "".
func JsonConfigFlags() string {
	return lookupString(os.Args[1:], "c", "config", "path to JSON config file")
}

// EnvFileFlags returns the path given by -e or -env, or "".
func EnvFileFlags() string {
	return lookupString(os.Args[1:], "e", "env", "path to .env file")
}
