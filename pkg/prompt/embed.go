package prompt

import (
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed prompts
var promptFS embed.FS

// library maps "system/agent-main.md" style keys to prompt text. The files
// are fixed at build time, so it is filled once and only read afterwards.
var library = func() map[string]string {
	m := make(map[string]string)
	err := fs.WalkDir(promptFS, "prompts", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".md" {
			return err
		}
		data, err := promptFS.ReadFile(p)
		if err != nil {
			return err
		}
		m[strings.TrimPrefix(p, "prompts/")] = string(data)
		return nil
	})
	if err != nil {
		panic("prompt: reading embedded prompts: " + err.Error())
	}
	return m
}()

func loadSystemPrompt(name string) string { return library["system/"+name] }

func loadReminderPrompt(name string) string { return library["reminders/"+name] }
