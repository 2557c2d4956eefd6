/*
   SpeccyBoot - ZX Spectrum network boot daemon
   Copyright (c) 2026, Patrik Persson

   This file is part of SpeccyBoot.

   SpeccyBoot is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   SpeccyBoot is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with SpeccyBoot. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//
const DefaultAPIAddress = "localhost:8580"

//
const runnerHelpEpilogue = `- Settings can also be given via environment
  variables, prefixed with SPECCYBOOT_, e.g. SPECCYBOOT_ADDRESS for the
  daemon API address. Command line flags take precedence.
`

/*
	NewRunner creates the base for a CLI command. All commands embed a
	Runner; it carries the cobra command, the settings registry, and the
	client side of the control API.
*/
func NewRunner(use, short, long, example, epilogue string,
	run func() error) *Runner {

	r := &Runner{}

	r.cmd = &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long + "\n" + epilogue,
		Example:       example,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return run()
		},
	}

	return r
}

//
type Runner struct {
	cmd      *cobra.Command
	settings []*setting
	//
	Address  string
	LogLevel string
}

//
type setting struct {
	target interface{}
	name   string
}

//
func (r *Runner) Cmd() *cobra.Command {
	return r.cmd
}

//
func (r *Runner) flags() *pflag.FlagSet {
	return r.cmd.Flags()
}

// AddBaseSettings registers the settings every command has.
func (r *Runner) AddBaseSettings() {
	r.AddSetting(&r.Address, "address", "a", "SPECCYBOOT_ADDRESS",
		DefaultAPIAddress, "daemon API address", false)
	r.AddSetting(&r.LogLevel, "log-level", "", "SPECCYBOOT_LOG_LEVEL",
		"info", "log level (trace, debug, info, warn, error)", false)
}

/*
	AddSetting registers a command flag of string, int, or bool type.
	When env is non-empty, the setting can also be supplied via that
	environment variable; ParseSettings applies it for flags not set on
	the command line.
*/
func (r *Runner) AddSetting(target interface{}, name, short, env string,
	def interface{}, help string, required bool) {

	switch t := target.(type) {

	case *string:
		d := ""
		if def != nil {
			d = def.(string)
		}
		r.flags().StringVarP(t, name, short, d, help)

	case *int:
		d := 0
		if def != nil {
			d = def.(int)
		}
		r.flags().IntVarP(t, name, short, d, help)

	case *bool:
		d := false
		if def != nil {
			d = def.(bool)
		}
		r.flags().BoolVarP(t, name, short, d, help)

	default:
		panic(fmt.Sprintf("unsupported setting type for %s", name))
	}

	if required {
		r.cmd.MarkFlagRequired(name)
	}

	if env != "" {
		viper.BindEnv(name, env)
		r.settings = append(r.settings, &setting{target: target, name: name})
	}
}

// ParseSettings fills in environment values for flags not given on the
// command line, and applies the log level.
func (r *Runner) ParseSettings() {

	for _, s := range r.settings {

		if r.IsSet(s.name) || !viper.IsSet(s.name) {
			continue
		}

		switch t := s.target.(type) {
		case *string:
			*t = viper.GetString(s.name)
		case *int:
			*t = viper.GetInt(s.name)
		case *bool:
			*t = viper.GetBool(s.name)
		}
	}

	if r.LogLevel != "" {
		if level, err := log.ParseLevel(r.LogLevel); err == nil {
			log.SetLevel(level)
		} else {
			log.Warnf("invalid log level '%s', using info", r.LogLevel)
		}
	}
}

//
func (r *Runner) IsSet(name string) bool {
	return r.flags().Changed(name)
}

/*
	apiCall invokes the daemon's control API. The returned reader is the
	response body; the caller closes it. Non-OK responses come back as
	errors, with the response body as the message.
*/
func (r *Runner) apiCall(
	method, path string, json bool, body io.Reader) (io.ReadCloser, error) {

	addr := r.Address
	if addr == "" {
		addr = DefaultAPIAddress
	}
	if !strings.HasPrefix(addr, "http://") &&
		!strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}

	req, err := http.NewRequest(method, addr+path, body)
	if err != nil {
		return nil, err
	}
	if json {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := ioutil.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s", strings.TrimSpace(string(msg)))
	}

	return resp.Body, nil
}
