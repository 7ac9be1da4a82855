package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const articlesCSV = `title,author,url,content,keywords,entities,triples,sentiment,crawl_time
测试文章1,作者1,http://example.com/1,这是测试文章1的内容。,"关键词1,关键词2","{""person"": [""人物1""]}","(A,导演,B);(C,出演,B)",0.8,2023-01-01 10:00:00
测试文章2,作者2,http://example.com/2,,关键词2,,garbage,,
`

func TestParseCSVArticles(t *testing.T) {
	table, err := ParseCSV("articles.csv", []byte(articlesCSV))
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	assert.False(t, table.IsRoleTable())
	assert.True(t, table.HasColumn(ColTriples))
	assert.NotEmpty(t, table.Version)

	doc, ok := table.Document(0)
	require.True(t, ok)
	assert.Equal(t, 0, doc.ID)
	assert.Equal(t, "测试文章1", doc.Title)
	assert.Equal(t, "关键词1,关键词2", doc.Keywords)
	assert.Equal(t, `{"person": ["人物1"]}`, doc.Entities)
	assert.Equal(t, "(A,导演,B);(C,出演,B)", doc.Triples)
	assert.Equal(t, "0.8", doc.Sentiment)
	assert.Equal(t, "2023-01-01 10:00:00", doc.Timestamp)

	doc, ok = table.Document(1)
	require.True(t, ok)
	assert.Equal(t, "garbage", doc.Triples)
	assert.Empty(t, doc.Content)
}

func TestParseCSVMissingColumnsDegrade(t *testing.T) {
	data := "title,content\nOnly title,Body text\n"
	table, err := ParseCSV("minimal.csv", []byte(data))
	require.NoError(t, err)

	require.Equal(t, 1, table.Len())
	doc, _ := table.Document(0)
	assert.Equal(t, "Only title", doc.Title)
	assert.Empty(t, doc.Keywords)
	assert.Empty(t, doc.Entities)
	assert.Empty(t, doc.Triples)
	assert.False(t, table.HasColumn(ColKeywords))
	assert.Equal(t, []string{ColTitle, ColContent}, table.Columns())
}

func TestParseCSVShortRowsAndBlankLines(t *testing.T) {
	data := "title,author,keywords\nA\n,,\nB,someone,k1\n"
	table, err := ParseCSV("short.csv", []byte(data))
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	a, _ := table.Document(0)
	assert.Equal(t, "A", a.Title)
	assert.Empty(t, a.Author)

	b, _ := table.Document(1)
	assert.Equal(t, 1, b.ID)
	assert.Equal(t, "k1", b.Keywords)
}

func TestParseCSVAliasesAndBOM(t *testing.T) {
	data := "\xef\xbb\xbfmovie_title,movie_url,directors,actors,genres,timestamp\n霸王别姬,http://m/1,陈凯歌,\"张国荣,巩俐\",剧情,2024-05-01\n"
	table, err := ParseCSV("movies.csv", []byte(data))
	require.NoError(t, err)

	assert.True(t, table.IsRoleTable())
	doc, _ := table.Document(0)
	assert.Equal(t, "霸王别姬", doc.Title)
	assert.Equal(t, "http://m/1", doc.URL)
	assert.Equal(t, "陈凯歌", doc.Directors)
	assert.Equal(t, "张国荣,巩俐", doc.Actors)
	assert.Equal(t, "2024-05-01", doc.Timestamp)
}

func TestParseCSVEmpty(t *testing.T) {
	table, err := ParseCSV("empty.csv", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())

	_, ok := table.Document(0)
	assert.False(t, ok)
}

func TestVersionTracksContent(t *testing.T) {
	a, err := ParseCSV("a.csv", []byte("title\nx\n"))
	require.NoError(t, err)
	b, err := ParseCSV("b.csv", []byte("title\nx\n"))
	require.NoError(t, err)
	c, err := ParseCSV("c.csv", []byte("title\ny\n"))
	require.NoError(t, err)

	assert.Equal(t, a.Version, b.Version)
	assert.NotEqual(t, a.Version, c.Version)
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"title", "keywords", "triples"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"Doc", "a,b", "(s,p,o)"}))

	path := filepath.Join(t.TempDir(), "corpus.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	doc, _ := table.Document(0)
	assert.Equal(t, "Doc", doc.Title)
	assert.Equal(t, "a,b", doc.Keywords)
	assert.Equal(t, "(s,p,o)", doc.Triples)
}

func TestLoadCSVFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.csv")
	require.NoError(t, os.WriteFile(path, []byte(articlesCSV), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, path, table.Source)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestFromDocumentsReassignsIDs(t *testing.T) {
	table := FromDocuments("store", "import-1", []string{"title", "movie_title"}, []Document{
		{ID: 7, Title: "first"},
		{ID: 9, Title: "second"},
	})
	require.Equal(t, 2, table.Len())
	doc, _ := table.Document(1)
	assert.Equal(t, 1, doc.ID)
	assert.Equal(t, "second", doc.Title)
	assert.True(t, table.HasColumn(ColTitle))
}

func TestEmptyTable(t *testing.T) {
	table := Empty()
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Documents())
	assert.False(t, table.IsRoleTable())
}
