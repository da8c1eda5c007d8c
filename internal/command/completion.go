// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/xxii/internal/meta"
)

const bashCompletionScript = `# bash completion for xxii
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_xxii()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "install serve ls stores completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local storage="--store --cache-dir --bucket --prefix --region --profile --endpoint --name -n --version"
    local worker="--origin --write-policy --prune --timeout"

    case "$cmd" in
        install)
            local opts="$storage $worker"
            ;;
        serve)
            local opts="$storage $worker --listen -l --strict"
            ;;
        ls)
            local opts="$storage --color -c --filter -f --output -o --sort -s --titles -t"
            ;;
        stores)
            local opts="$storage --delete -d"
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$storage"
            ;;
    esac

    case "$prev" in
        --store)
            COMPREPLY=( $(compgen -W "memory disk sqlite s3" -- "$cur") )
            return 0
            ;;
        --output|-o)
            COMPREPLY=( $(compgen -W "text json yaml" -- "$cur") )
            return 0
            ;;
        --write-policy)
            COMPREPLY=( $(compgen -W "ignore fail" -- "$cur") )
            return 0
            ;;
        --cache-dir)
            COMPREPLY=( $(compgen -o dirnames -- "$cur") )
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _xxii xxii
`

const zshCompletionScript = `#compdef xxii

_xxii() {
  local -a cmds
  cmds=(
    'install:precache the manifest into a store'
    'serve:precache, then run the caching proxy'
    'ls:list the entries of a store'
    'stores:list or delete the stores in the storage'
    'completion:generate shell completion script'
  )

  local -a storage
  storage=(
  '--store[cache storage]:store:(memory disk sqlite s3)'
  '--cache-dir[base directory]:dir:_directories'
  '--bucket[S3 bucket]:bucket'
  '--prefix[S3 key prefix]:prefix'
  '--region[AWS region]:region'
  '--profile[AWS profile]:profile'
  '--endpoint[S3 endpoint]:url'
  '(-n --name)'{-n,--name}'[cache base name]:name'
  '--version[cache version tag]:version'
  )

  local -a worker
  worker=(
  '--origin[origin URL]:url'
  '--write-policy[cache write failures]:policy:(ignore fail)'
  '--prune[delete other versions]'
  '--timeout[network timeout]:duration'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'xxii commands' cmds
    return
  fi

  case $words[2] in
    install)
      _arguments -C $storage $worker
      ;;
    serve)
      _arguments -C $storage $worker \
        '(-l --listen)'{-l,--listen}'[listen address]:addr' \
        '--strict[exit when install fails]'
      ;;
    ls)
      _arguments -C $storage \
        '(-c --color)'{-c,--color}'[enable colored text]' \
        '(-f --filter)'{-f,--filter}'[filters to apply]:filters' \
        '(-o --output)'{-o,--output}'[output format]:format:(text json yaml)' \
        '(-s --sort)'{-s,--sort}'[sort fields]:fields' \
        '(-t --titles)'{-t,--titles}'[show titles]'
      ;;
    stores)
      _arguments -C $storage '(-d --delete)'{-d,--delete}'[delete store]:name'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _xxii xxii
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	w := stdout(cmd)
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		// Try to detect from SHELL or print usage
		sh := os.Getenv("SHELL")
		if strings.HasSuffix(sh, "zsh") {
			fmt.Fprint(w, zshCompletionScript)
		} else if strings.HasSuffix(sh, "bash") {
			fmt.Fprint(w, bashCompletionScript)
		} else {
			fmt.Fprintln(os.Stderr, "usage: xxii completion [bash|zsh]")
		}
	}
	return nil
}

func CompletionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "xxii completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
