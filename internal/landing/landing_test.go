package landing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowbank/internal/catalog"
	"snowbank/internal/generator"
	"snowbank/internal/snowflake"
	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

var generatedTree = map[string]string{
	"master_data/customers.csv":                                     "customer_id\n",
	"master_data/customer_addresses.csv":                            "customer_id\n",
	"master_data/accounts.csv":                                      "account_id\n",
	"master_data/pep_data.csv":                                      "pep_id\n",
	"master_data/customer_updates/customer_updates_2024-01-05.csv":  "customer_id\n",
	"master_data/address_updates/customer_addresses_2024-01-05.csv": "customer_id\n",
	"fx_rates/fx_rates_2024-01-02.csv":                              "date\n",
	"payment_transactions/pay_transactions_2024-01-02.csv":          "booking_date\n",
	"equity_trades/trades_2024-01-02.csv":                           "trade_date\n",
	"fixed_income_trades/fixed_income_trades_2024-01-02.csv":        "trade_date\n",
	"commodity_trades/commodity_trades_2024-01-02.csv":              "trade_date\n",
	"swift_messages/swift_CUST_00001_000001_pacs008.xml":            "<Document/>",
	"reports/generation_summary.txt":                                "summary",
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

type fakeSink struct {
	keys []string
	fail map[string]bool
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Upload(_ context.Context, _, key string) error {
	if f.fail[key] {
		return fmt.Errorf("boom")
	}
	f.keys = append(f.keys, key)
	return nil
}

type fakeTasks struct {
	ran []string
	err error
}

func (f *fakeTasks) ExecuteTask(_ context.Context, task string) error {
	if f.err != nil {
		return f.err
	}
	f.ran = append(f.ran, task)
	return nil
}

func TestRouterMatch(t *testing.T) {
	r := NewRouter()
	tests := []struct {
		key   string
		stage string
		task  string
	}{
		{"master_data/customers.csv", "CRM_RAW_001.CRMI_RAW_STAGE", "CRM_RAW_001.CRMI_RAW_TA_LOAD_CUSTOMERS"},
		{"master_data/customer_updates/customer_updates_2024-02-01.csv", "CRM_RAW_001.CRMI_RAW_STAGE", "CRM_RAW_001.CRMI_RAW_TA_LOAD_CUSTOMERS"},
		{"master_data/customer_addresses.csv", "CRM_RAW_001.CRMI_RAW_STAGE", "CRM_RAW_001.CRMI_RAW_TA_LOAD_ADDRESSES"},
		{"master_data/address_updates/customer_addresses_2024-02-01.csv", "CRM_RAW_001.CRMI_RAW_STAGE", "CRM_RAW_001.CRMI_RAW_TA_LOAD_ADDRESSES"},
		{"master_data/pep_data.csv", "CRM_RAW_001.CRMI_RAW_STAGE", "CRM_RAW_001.CRMI_RAW_TA_LOAD_EXPOSED_PERSON"},
		{"master_data/accounts.csv", "CRM_RAW_001.ACCI_RAW_STAGE", "CRM_RAW_001.ACCI_RAW_TA_LOAD_ACCOUNTS"},
		{"fx_rates/fx_rates_2024-01-02.csv", "REF_RAW_001.FXRI_RAW_STAGE", "REF_RAW_001.FXRI_RAW_TA_LOAD_FX_RATES"},
		{"payment_transactions/pay_transactions_2024-01-02.csv", "PAY_RAW_001.PAYI_RAW_STAGE", "PAY_RAW_001.PAYI_RAW_TA_LOAD_TRANSACTIONS"},
		{"equity_trades/trades_2024-01-02.csv", "EQT_RAW_001.EQTI_RAW_STAGE", "EQT_RAW_001.EQTI_RAW_TA_LOAD_TRADES"},
		{"fixed_income_trades/fixed_income_trades_2024-01-02.csv", "FII_RAW_001.FIII_RAW_STAGE", "FII_RAW_001.FIII_RAW_TA_LOAD_TRADES"},
		{"commodity_trades/commodity_trades_2024-01-02.csv", "CMD_RAW_001.CMDI_RAW_STAGE", "CMD_RAW_001.CMDI_RAW_TA_LOAD_TRADES"},
		{"swift_messages/swift_CUST_00001_000001_pacs002.xml", "ICG_RAW_001.ICGI_RAW_SWIFT_STAGE", "ICG_RAW_001.ICGI_RAW_TA_LOAD_SWIFT_MESSAGES"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			rt, ok := r.Match(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.stage, rt.Stage)
			assert.Equal(t, tt.task, rt.Task)
		})
	}

	for _, key := range []string{"reports/generation_summary.txt", "equity_trades/notes.csv", "swift_messages/readme.txt"} {
		_, ok := r.Match(key)
		assert.False(t, ok, key)
	}
}

func TestLoaderUploadsRoutedFiles(t *testing.T) {
	dir := writeTree(t, generatedTree)
	sink := &fakeSink{}
	tasks := &fakeTasks{}

	res, err := NewLoader(sink, nil).Load(context.Background(), dir, Options{Tasks: tasks})
	require.NoError(t, err)

	assert.Len(t, res.Uploaded, len(generatedTree)-1)
	assert.Equal(t, []string{"reports/generation_summary.txt"}, res.Skipped)
	assert.Empty(t, res.Failed)
	assert.ElementsMatch(t, sink.keys, res.Uploaded)

	// one run per task, in route order
	assert.Equal(t, []string{
		"CRM_RAW_001.CRMI_RAW_TA_LOAD_CUSTOMERS",
		"CRM_RAW_001.CRMI_RAW_TA_LOAD_ADDRESSES",
		"CRM_RAW_001.CRMI_RAW_TA_LOAD_EXPOSED_PERSON",
		"CRM_RAW_001.ACCI_RAW_TA_LOAD_ACCOUNTS",
		"REF_RAW_001.FXRI_RAW_TA_LOAD_FX_RATES",
		"PAY_RAW_001.PAYI_RAW_TA_LOAD_TRANSACTIONS",
		"EQT_RAW_001.EQTI_RAW_TA_LOAD_TRADES",
		"FII_RAW_001.FIII_RAW_TA_LOAD_TRADES",
		"CMD_RAW_001.CMDI_RAW_TA_LOAD_TRADES",
		"ICG_RAW_001.ICGI_RAW_TA_LOAD_SWIFT_MESSAGES",
	}, tasks.ran)
	assert.Equal(t, tasks.ran, res.Tasks)
}

func TestLoaderOnlyRunsTouchedTasks(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"payment_transactions/pay_transactions_2024-01-02.csv": "x",
		"payment_transactions/pay_transactions_2024-01-03.csv": "x",
	})
	tasks := &fakeTasks{}
	res, err := NewLoader(&fakeSink{}, nil).Load(context.Background(), dir, Options{Tasks: tasks})
	require.NoError(t, err)
	assert.Len(t, res.Uploaded, 2)
	assert.Equal(t, []string{"PAY_RAW_001.PAYI_RAW_TA_LOAD_TRANSACTIONS"}, tasks.ran)
}

func TestLoaderWithoutTasks(t *testing.T) {
	dir := writeTree(t, generatedTree)
	res, err := NewLoader(&fakeSink{}, nil).Load(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Tasks)
}

func TestLoaderFailures(t *testing.T) {
	dir := writeTree(t, generatedTree)
	sink := &fakeSink{fail: map[string]bool{"fx_rates/fx_rates_2024-01-02.csv": true}}
	tasks := &fakeTasks{}

	res, err := NewLoader(sink, nil).Load(context.Background(), dir, Options{Tasks: tasks})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLandingFailed))
	require.NotNil(t, res)
	assert.Contains(t, res.Failed, "fx_rates/fx_rates_2024-01-02.csv")
	assert.Len(t, res.Uploaded, len(generatedTree)-2)
	assert.Empty(t, tasks.ran, "tasks must not run after a failed upload")
}

func TestLoaderTaskFailure(t *testing.T) {
	dir := writeTree(t, generatedTree)
	tasks := &fakeTasks{err: fmt.Errorf("task suspended")}
	_, err := NewLoader(&fakeSink{}, nil).Load(context.Background(), dir, Options{Tasks: tasks})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLandingFailed))
}

func TestLoaderEmptyDir(t *testing.T) {
	dir := writeTree(t, map[string]string{"reports/generation_summary.txt": "x"})
	res, err := NewLoader(&fakeSink{}, nil).Load(context.Background(), dir, Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLandingFailed))
	assert.Len(t, res.Skipped, 1)
}

func TestLoaderMissingDir(t *testing.T) {
	_, err := NewLoader(&fakeSink{}, nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileOperation))
}

func TestLoaderCancelled(t *testing.T) {
	dir := writeTree(t, generatedTree)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(&fakeSink{}, nil).Load(ctx, dir, Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTimeout))
}

func TestLocalSink(t *testing.T) {
	src := writeTree(t, map[string]string{"fx_rates/fx_rates_2024-01-02.csv": "date,from\n"})
	dest := t.TempDir()
	sink := NewLocalSink(dest)
	assert.Equal(t, "local:"+dest, sink.Name())

	err := sink.Upload(context.Background(), filepath.Join(src, "fx_rates", "fx_rates_2024-01-02.csv"), "fx_rates/fx_rates_2024-01-02.csv")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dest, "fx_rates", "fx_rates_2024-01-02.csv"))
	require.NoError(t, err)
	assert.Equal(t, "date,from\n", string(got))

	err = sink.Upload(context.Background(), filepath.Join(src, "fx_rates", "fx_rates_2024-01-02.csv"), "../escape.csv")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLandingFailed))
}

func TestStageSinkPut(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	dir := writeTree(t, map[string]string{
		"master_data/customers.csv":                          "x",
		"swift_messages/swift_CUST_00001_000001_pacs008.xml": "x",
	})
	customers := filepath.Join(dir, "master_data", "customers.csv")
	swift := filepath.Join(dir, "swift_messages", "swift_CUST_00001_000001_pacs008.xml")

	mock.ExpectExec("PUT 'file://" + filepath.ToSlash(customers) + "' @CRM_RAW_001.CRMI_RAW_STAGE/master_data AUTO_COMPRESS=FALSE OVERWRITE=TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("PUT 'file://" + filepath.ToSlash(swift) + "' @ICG_RAW_001.ICGI_RAW_SWIFT_STAGE/swift_messages AUTO_COMPRESS=FALSE OVERWRITE=TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("EXECUTE TASK CRM_RAW_001.CRMI_RAW_TA_LOAD_CUSTOMERS").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("EXECUTE TASK ICG_RAW_001.ICGI_RAW_TA_LOAD_SWIFT_MESSAGES").
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc := snowflake.NewServiceWithDB(db, snowflake.Config{Database: "TEST_DB"})
	res, err := NewLoader(NewStageSink(svc, nil), nil).Load(context.Background(), dir, Options{Tasks: svc})
	require.NoError(t, err)
	assert.Len(t, res.Uploaded, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStageSinkUnroutedKey(t *testing.T) {
	sink := NewStageSink(&fakeStager{}, nil)
	err := sink.Upload(context.Background(), "x", "reports/generation_summary.txt")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLandingFailed))
}

func TestStageSinkTopLevelKey(t *testing.T) {
	st := &fakeStager{}
	require.NoError(t, NewStageSink(st, nil).Upload(context.Background(), "/tmp/accounts.csv", "accounts.csv"))
	require.Len(t, st.puts, 1)
	assert.Equal(t, "", st.puts[0].Prefix)
	assert.Equal(t, "CRM_RAW_001.ACCI_RAW_STAGE", st.puts[0].Stage)
	assert.True(t, st.puts[0].Overwrite)
	assert.False(t, st.puts[0].AutoCompress)
}

type fakeStager struct {
	puts []snowflake.PutOptions
}

func (f *fakeStager) Put(_ context.Context, _ string, opts snowflake.PutOptions) error {
	f.puts = append(f.puts, opts)
	return nil
}

func (f *fakeStager) ExecuteTask(context.Context, string) error { return nil }

type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
	types   map[string]string
	err     error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)] = string(body)
	f.types[aws.StringValue(in.Key)] = aws.StringValue(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink(t *testing.T) {
	dir := writeTree(t, generatedTree)
	client := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	sink := NewS3SinkWithClient(client, "bank-landing", "raw/2024")
	assert.Equal(t, "s3://bank-landing/raw/2024", sink.Name())

	_, err := NewLoader(sink, nil).Load(context.Background(), dir, Options{})
	require.NoError(t, err)

	assert.Len(t, client.objects, len(generatedTree)-1)
	assert.Equal(t, "customer_id\n", client.objects["bank-landing/raw/2024/master_data/customers.csv"])
	assert.Equal(t, "text/csv", client.types["raw/2024/master_data/customers.csv"])
	assert.Equal(t, "application/xml", client.types["raw/2024/swift_messages/swift_CUST_00001_000001_pacs008.xml"])
}

func TestS3SinkError(t *testing.T) {
	dir := writeTree(t, map[string]string{"master_data/accounts.csv": "x"})
	sink := NewS3SinkWithClient(&fakeS3{err: fmt.Errorf("access denied")}, "b", "")
	err := sink.Upload(context.Background(), filepath.Join(dir, "master_data", "accounts.csv"), "master_data/accounts.csv")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLandingFailed))

	err = sink.Upload(context.Background(), filepath.Join(dir, "missing.csv"), "missing.csv")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileOperation))
}

type memWriter struct {
	bytes.Buffer
	name     string
	ctype    string
	closeErr error
	store    *fakeGCS
}

func (w *memWriter) Close() error {
	if w.closeErr != nil {
		return w.closeErr
	}
	w.store.objects[w.name] = w.String()
	w.store.types[w.name] = w.ctype
	return nil
}

type fakeGCS struct {
	objects  map[string]string
	types    map[string]string
	closeErr error
}

func (f *fakeGCS) NewWriter(_ context.Context, bucket, object, contentType string) io.WriteCloser {
	return &memWriter{name: bucket + "/" + object, ctype: contentType, closeErr: f.closeErr, store: f}
}

func TestGCSSink(t *testing.T) {
	dir := writeTree(t, generatedTree)
	store := &fakeGCS{objects: map[string]string{}, types: map[string]string{}}
	sink := &GCSSink{writers: store, bucket: "bank-landing", prefix: "raw"}
	assert.Equal(t, "gs://bank-landing/raw", sink.Name())

	_, err := NewLoader(sink, nil).Load(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Len(t, store.objects, len(generatedTree)-1)
	assert.Equal(t, "<Document/>", store.objects["bank-landing/raw/swift_messages/swift_CUST_00001_000001_pacs008.xml"])
	assert.Equal(t, "text/csv", store.types["bank-landing/raw/fx_rates/fx_rates_2024-01-02.csv"])
	assert.NoError(t, sink.Close())
}

func TestGCSSinkFinalizeError(t *testing.T) {
	dir := writeTree(t, map[string]string{"master_data/accounts.csv": "x"})
	sink := &GCSSink{writers: &fakeGCS{closeErr: fmt.Errorf("precondition failed")}, bucket: "b"}
	err := sink.Upload(context.Background(), filepath.Join(dir, "master_data", "accounts.csv"), "master_data/accounts.csv")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLandingFailed))
	assert.True(t, strings.Contains(err.Error(), "finalize"))
}

func TestNewSink(t *testing.T) {
	ctx := context.Background()

	sink, err := NewSink(ctx, models.Landing{Target: "local", LocalDir: "out"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "local:out", sink.Name())

	sink, err = NewSink(ctx, models.Landing{Target: "LOCAL"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "local:"+DefaultLocalDir, sink.Name())

	sink, err = NewSink(ctx, models.Landing{Target: "stage"}, &fakeStager{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stage", sink.Name())

	_, err = NewSink(ctx, models.Landing{Target: "stage"}, nil, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))

	_, err = NewSink(ctx, models.Landing{Target: "s3"}, nil, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))

	_, err = NewSink(ctx, models.Landing{Target: "gcs"}, nil, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))

	_, err = NewSink(ctx, models.Landing{Target: "ftp"}, nil, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a/b.csv"))
	assert.Equal(t, "application/xml", contentType("a/b.xml"))
	assert.Equal(t, "application/octet-stream", contentType("a/b.txt"))
}

func TestEveryGeneratedFileIsRouted(t *testing.T) {
	cfg := models.Defaults().Generator
	cfg.Customers = 10
	cfg.PeriodMonths = 1
	cfg.StartDate = "2024-01-01"
	cfg.Seed = 3
	cfg.SwiftPercentage = 50
	cfg.OutputDir = t.TempDir()

	g, err := generator.New(cfg, generator.WithNow(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	summary, err := g.Run(context.Background())
	require.NoError(t, err)

	r := NewRouter()
	for _, key := range summary.Files {
		_, ok := r.Match(key)
		if strings.HasPrefix(key, generator.ReportsDir+"/") {
			assert.False(t, ok, key)
			continue
		}
		assert.True(t, ok, "no route for %s", key)
	}
}

func TestRoutesExistInCatalog(t *testing.T) {
	cat, err := catalog.Load()
	require.NoError(t, err)
	for _, rt := range DefaultRoutes {
		stage, ok := cat.Lookup(rt.Stage)
		require.True(t, ok, rt.Stage)
		assert.Equal(t, catalog.ObjectTypeStage, stage.Type)

		task, ok := cat.Lookup(rt.Task)
		require.True(t, ok, rt.Task)
		assert.Equal(t, catalog.ObjectTypeTask, task.Type)
		assert.Equal(t, rt.Domain, task.Script.Domain, rt.Task)
	}
}
