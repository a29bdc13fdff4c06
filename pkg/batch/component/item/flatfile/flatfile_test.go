package flatfile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/item"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/item/flatfile"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	stepitem "github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/item"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

type player struct {
	ID        string
	LastName  string
	FirstName string
	Position  string
	BirthYear int
	DebutYear int
}

const players = `ID,lastName,firstName,position,birthYear,debutYear
AbduKa00,Abdul-Jabbar,Karim,rb,1974,1996
AbduRa00,Abdullah,Rabih,rb,1975,1999
AberWa00,Abercrombie,Walter,rb,1959,1982
AbraDa00,Abramowicz,Danny,wr,1945,1967
AdamBo00,Adams,Bob,te,1946,1969
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Players.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newResolver(t *testing.T) (storage.StorageConnectionResolver, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Surfin.StorageConfigs = map[string]interface{}{
		"output": map[string]interface{}{"type": "local", "base_dir": dir},
	}
	return storage.NewResolver(cfg, local.NewLocalProvider(cfg)), dir
}

func readAll(t *testing.T, r port.ItemReader[player]) []player {
	t.Helper()
	var out []player
	for {
		p, err := r.Read(context.Background())
		if errors.Is(err, port.ErrNoMoreItems) {
			return out
		}
		require.NoError(t, err)
		out = append(out, p)
	}
}

func TestBeanFieldSetMapperAndExtractor(t *testing.T) {
	p, err := flatfile.NewBeanFieldSetMapper[player]().MapFieldSet(flatfile.FieldSet{
		"ID": "AbduKa00", "lastName": "Abdul-Jabbar", "birthYear": "1974",
	})
	require.NoError(t, err)
	assert.Equal(t, player{ID: "AbduKa00", LastName: "Abdul-Jabbar", BirthYear: 1974}, p)

	_, err = flatfile.NewBeanFieldSetMapper[player]().MapFieldSet(flatfile.FieldSet{"birthYear": "unknown"})
	assert.Error(t, err)

	values, err := flatfile.NewBeanFieldExtractor[*player]("lastName", "ID", "debutYear").Extract(&player{ID: "x", LastName: "y", DebutYear: 2001})
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x", "2001"}, values)

	_, err = flatfile.NewBeanFieldExtractor[player]("team").Extract(player{})
	assert.Error(t, err)
}

func TestFlatFileItemReader_HeaderNamesAndRestart(t *testing.T) {
	ctx := context.Background()
	path := writeInput(t, players)
	cfg := flatfile.ReaderConfig{Resource: path, LinesToSkip: 1}

	r := flatfile.NewFlatFileItemReader("playerReader", cfg, flatfile.NewBeanFieldSetMapper[player](), nil)
	ec := model.NewExecutionContext()
	require.NoError(t, r.Open(ctx, ec))
	first, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, player{ID: "AbduKa00", LastName: "Abdul-Jabbar", FirstName: "Karim", Position: "rb", BirthYear: 1974, DebutYear: 1996}, first)
	_, err = r.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Update(ctx, ec))
	require.NoError(t, r.Close(ctx))

	restarted := flatfile.NewFlatFileItemReader("playerReader", cfg, flatfile.NewBeanFieldSetMapper[player](), nil)
	require.NoError(t, restarted.Open(ctx, ec))
	rest := readAll(t, restarted)
	require.Len(t, rest, 3)
	assert.Equal(t, "AberWa00", rest[0].ID)
	require.NoError(t, restarted.Close(ctx))
}

func TestFlatFileItemReader_BadLineIsSkippable(t *testing.T) {
	ctx := context.Background()
	path := writeInput(t, "AbduKa00;Abdul-Jabbar;Karim;rb;1974;1996\nbroken;line\nAdamBo00;Adams;Bob;te;1946;1969\n")
	cfg := flatfile.ReaderConfig{
		Resource:  path,
		Delimiter: ';',
		Names:     []string{"ID", "lastName", "firstName", "position", "birthYear", "debutYear"},
	}
	r := flatfile.NewFlatFileItemReader("semicolon", cfg, flatfile.NewBeanFieldSetMapper[player](), nil)
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))

	_, err := r.Read(ctx)
	require.NoError(t, err)
	_, err = r.Read(ctx)
	require.Error(t, err)
	be, ok := exception.AsBatchError(err)
	require.True(t, ok)
	assert.True(t, be.IsSkippable())
	assert.Contains(t, err.Error(), "line 2")

	last, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AdamBo00", last.ID)
	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
}

func TestFlatFileItemReader_MissingResource(t *testing.T) {
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "none.csv")
	strict := flatfile.NewFlatFileItemReader("strict", flatfile.ReaderConfig{Resource: missing}, flatfile.NewBeanFieldSetMapper[player](), nil)
	assert.Error(t, strict.Open(ctx, model.NewExecutionContext()))

	lenient := flatfile.NewFlatFileItemReader("lenient", flatfile.ReaderConfig{Resource: missing, AllowMissing: true}, flatfile.NewBeanFieldSetMapper[player](), nil)
	require.NoError(t, lenient.Open(ctx, model.NewExecutionContext()))
	assert.Empty(t, readAll(t, lenient))
	assert.NoError(t, lenient.Close(ctx))
}

func TestFlatFileItemReader_FromStorage(t *testing.T) {
	ctx := context.Background()
	resolver, dir := newResolver(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.csv"), []byte(players), 0o644))

	r := flatfile.NewFlatFileItemReader("remote", flatfile.ReaderConfig{Resource: "in.csv", StorageRef: "output", LinesToSkip: 1}, flatfile.NewBeanFieldSetMapper[player](), resolver)
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	assert.Len(t, readAll(t, r), 5)
	require.NoError(t, r.Close(ctx))
}

func newWriter(resolver storage.StorageConnectionResolver) *flatfile.FlatFileItemWriter[player] {
	return flatfile.NewFlatFileItemWriter[player]("playerWriter", flatfile.WriterConfig{
		StorageRef: "output",
		Resource:   "players_output.txt",
		Header:     []string{"ID", "lastName"},
	}, flatfile.NewBeanFieldExtractor[player]("ID", "lastName"), resolver)
}

func TestFlatFileItemWriter_WritesOnlyCommittedChunks(t *testing.T) {
	ctx := context.Background()
	resolver, dir := newResolver(t)
	out := filepath.Join(dir, "players_output.txt")
	tm := tx.NewResourcelessTransactionManager()
	ec := model.NewExecutionContext()

	w := newWriter(resolver)
	require.NoError(t, w.Open(ctx, ec))

	t1, err := tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, t1, []player{{ID: "a", LastName: "A"}, {ID: "b", LastName: "B"}}))
	require.NoError(t, w.Update(ctx, ec))
	require.NoError(t, tm.Commit(t1))
	committed := ec.Copy()

	t2, err := tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, t2, []player{{ID: "lost", LastName: "L"}}))
	require.NoError(t, tm.Rollback(t2))
	require.NoError(t, w.Close(ctx))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID,lastName\na,A\nb,B\n", string(data))
	offset, ok := committed.GetInt("playerWriter.write.offset")
	require.True(t, ok)
	assert.Equal(t, len(data), offset)

	// A crashed run may leave uncommitted bytes behind; a restart truncates them.
	require.NoError(t, os.WriteFile(out, append(data, []byte("partial,li")...), 0o644))
	restarted := newWriter(resolver)
	require.NoError(t, restarted.Open(ctx, committed))
	t3, err := tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, restarted.Write(ctx, t3, []player{{ID: "c", LastName: "C"}}))
	require.NoError(t, tm.Commit(t3))
	require.NoError(t, restarted.Close(ctx))

	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID,lastName\na,A\nb,B\nc,C\n", string(data))
}

func TestFlatFileItemWriter_EmptyInputCreatesHeaderOnlyFile(t *testing.T) {
	ctx := context.Background()
	resolver, dir := newResolver(t)
	w := newWriter(resolver)
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, w.Close(ctx))

	data, err := os.ReadFile(filepath.Join(dir, "players_output.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ID,lastName\n", string(data))
}

func TestFlatFileChunkStep_EndToEnd(t *testing.T) {
	ctx := context.Background()
	resolver, dir := newResolver(t)
	repo := inmemory.NewInMemoryJobRepository()

	reader := flatfile.NewFlatFileItemReader("playerReader", flatfile.ReaderConfig{Resource: writeInput(t, players), LinesToSkip: 1}, flatfile.NewBeanFieldSetMapper[player](), nil)
	s := stepitem.NewChunkStep[player, player]("copyPlayers", reader, item.NewPassThroughItemProcessor[player](), newWriter(resolver), 2, repo, tx.NewResourcelessTransactionManager())

	je, err := repo.CreateJobExecution(ctx, "copyJob", model.NewJobParameters())
	require.NoError(t, err)
	se := model.NewStepExecution("copyPlayers", je)
	require.NoError(t, repo.SaveStepExecution(ctx, se))

	require.NoError(t, s.Execute(ctx, se))
	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, 5, se.WriteCount)
	assert.Equal(t, 3, se.CommitCount)

	data, err := os.ReadFile(filepath.Join(dir, "players_output.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ID,lastName\nAbduKa00,Abdul-Jabbar\nAbduRa00,Abdullah\nAberWa00,Abercrombie\nAbraDa00,Abramowicz\nAdamBo00,Adams\n", string(data))
}
