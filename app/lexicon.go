package app

import (
	"log"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"github.com/tticoin/JointER/nlp/lexicon"
)

func ImportLexicon(cmd *commander.Command, args []string) error {
	if err := VerifyFlags(cmd, []string{"db", "in"}); err != nil {
		return err
	}
	if err := VerifyExists("synonyms file", synonyms); err != nil {
		return err
	}
	lex, err := lexicon.Open(lexiconDB)
	if err != nil {
		return err
	}
	n, err := lex.ImportFile(synonyms)
	if closeErr := lex.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	log.Println("Imported", n, "words into", lexiconDB)
	return nil
}

func LexiconCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       ImportLexicon,
		UsageLine: "lexicon <file options>",
		Short:     "imports a synonyms file into a lexicon database",
		Long: `
imports a synonyms file into a lexicon database

	$ ./jointer lexicon -db <dir> -in <synonyms.tsv>

Each line of the synonyms file holds a word followed by its tab-separated
entries.
`,
		Flag: *flag.NewFlagSet("lexicon", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&lexiconDB, "db", "", "Lexicon database directory")
	cmd.Flag.StringVar(&synonyms, "in", "", "Synonyms file")
	return cmd
}
