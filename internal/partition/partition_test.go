package partition

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/writer"
	"github.com/xuri/excelize/v2"
)

type creditRow struct {
	AnoSafra   string  `parquet:"name=AnoSafra, type=BYTE_ARRAY, convertedtype=UTF8"`
	SegmentoIF string  `parquet:"name=SegmentoIF, type=BYTE_ARRAY, convertedtype=UTF8"`
	MesEmissao int32   `parquet:"name=MesEmissao, type=INT32"`
	VlCusteio  float64 `parquet:"name=VlCusteio, type=DOUBLE"`
	NomeUF     *string `parquet:"name=nomeUF, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

func parquetFixture(t *testing.T, rows []creditRow) []byte {
	t.Helper()
	var buf bytes.Buffer
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(&buf), new(creditRow), 1)
	require.NoError(t, err)
	for i := range rows {
		require.NoError(t, pw.Write(rows[i]))
	}
	require.NoError(t, pw.WriteStop())
	return buf.Bytes()
}

func TestDecodeParquet(t *testing.T) {
	uf := "MT"
	data := parquetFixture(t, []creditRow{
		{AnoSafra: "2020/2021", SegmentoIF: "Banco Público", MesEmissao: 8, VlCusteio: 1500.5, NomeUF: &uf},
		{AnoSafra: "2020/2021", SegmentoIF: "Cooperativa", MesEmissao: 9, VlCusteio: 200},
	})

	raw, err := Decode("matriz_2020-2021.parquet", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"AnoSafra", "SegmentoIF", "MesEmissao", "VlCusteio", "nomeUF"}, raw.Columns)
	require.Len(t, raw.Rows, 2)
	assert.Equal(t, []string{"2020/2021", "Banco Público", "8", "1500.5", "MT"}, raw.Rows[0])
	assert.Equal(t, "", raw.Rows[1][raw.ColumnIndex("nomeUF")], "null renders as empty cell")
	assert.Equal(t, []bool{false, false, true, true, false}, raw.Typed)
}

type lowercaseRow struct {
	UF         string  `parquet:"name=nomeUF, type=BYTE_ARRAY, convertedtype=UTF8"`
	Programa   string  `parquet:"name=cd_programa, type=BYTE_ARRAY, convertedtype=UTF8"`
	Investment float64 `parquet:"name=vl_investimento, type=DOUBLE"`
}

func TestDecodeParquet_KeepsHeaderCase(t *testing.T) {
	var buf bytes.Buffer
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(&buf), new(lowercaseRow), 1)
	require.NoError(t, err)
	require.NoError(t, pw.Write(lowercaseRow{UF: "PR", Programa: "0050", Investment: 12.345}))
	require.NoError(t, pw.WriteStop())

	raw, err := DecodeParquet(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []string{"nomeUF", "cd_programa", "vl_investimento"}, raw.Columns)
	assert.Equal(t, [][]string{{"PR", "0050", "12.345"}}, raw.Rows)
	assert.True(t, raw.IsTyped(2))
	assert.False(t, raw.IsTyped(0))
}

func TestDecodeParquet_Corrupt(t *testing.T) {
	_, err := Decode("broken.parquet", []byte("PAR1 this is not a parquet footer"))
	assert.Error(t, err)
}

func TestDecodeCSV(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"comma", "AnoSafra,SegmentoIF,VlCusteio\n2020-2021,Banco,\"1.500,50\"\n\n2020-2021,Coop,10\n"},
		{"semicolon with BOM", "\uFEFFAnoSafra;SegmentoIF;VlCusteio\r\n2020-2021;Banco;1.500,50\r\n2020-2021;Coop;10\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Decode("data.csv", []byte(tt.content))
			require.NoError(t, err)

			assert.Equal(t, []string{"AnoSafra", "SegmentoIF", "VlCusteio"}, raw.Columns)
			require.Len(t, raw.Rows, 2)
			assert.Equal(t, "1.500,50", raw.Rows[0][2])
			assert.Equal(t, "Coop", raw.Rows[1][1])
		})
	}
}

func TestDecodeCSV_ShortRowsArePadded(t *testing.T) {
	raw, err := DecodeCSV([]byte("a,b,c\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "", ""}}, raw.Rows)
}

func TestDecodeCSV_EmptyHeaderNamed(t *testing.T) {
	raw, err := DecodeCSV([]byte("a,,c\n1,2,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "Column_2", "c"}, raw.Columns)
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"AnoSafra", "SegmentoIF", "MesEmissao"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"2021-2022", "Banco", 9}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"2021-2022", "Coop", 10}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	raw, err := Decode("data.xlsx", buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []string{"AnoSafra", "SegmentoIF", "MesEmissao"}, raw.Columns)
	assert.Equal(t, [][]string{{"2021-2022", "Banco", "9"}, {"2021-2022", "Coop", "10"}}, raw.Rows)
}

func TestDecodeXLSX_ReadsStoredNumbers(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"SegmentoIF", "VlCusteio"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Banco", 1500}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Coop", 2500.75}))
	style, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B3", style))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	raw, err := Decode("data.xlsx", buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"Banco", "1500"}, {"Coop", "2500.75"}}, raw.Rows)
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode("empty.parquet", nil)
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatParquet, DetectFormat("x.PARQUET", nil))
	assert.Equal(t, FormatCSV, DetectFormat("x.csv", []byte("PAR1")))
	assert.Equal(t, FormatParquet, DetectFormat("blob", []byte("PAR1....")))
	assert.Equal(t, FormatXLSX, DetectFormat("blob", []byte("PK\x03\x04")))
	assert.Equal(t, FormatCSV, DetectFormat("blob", []byte("a,b")))
}
