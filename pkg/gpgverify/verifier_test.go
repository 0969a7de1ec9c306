package gpgverify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sabrina905990/apt/internal/logger"
	"github.com/sabrina905990/apt/pkg/acquire"
	"github.com/sabrina905990/apt/pkg/config"
	"github.com/sabrina905990/apt/pkg/gpgverify/mocks"
)

func newMethod() *acquire.Method {
	return acquire.NewMethod("gpgv", "1.0", new(nopReader), new(discardWriter), config.DefaultStore(), logger.For(logger.ComponentGPGV))
}

// newRecordingMethod is newMethod with the protocol output kept, so a test
// can check which reply URIAcquire emitted.
func newRecordingMethod() (*acquire.Method, *strings.Builder) {
	out := &strings.Builder{}
	return acquire.NewMethod("gpgv", "1.0", new(nopReader), out, config.DefaultStore(), logger.For(logger.ComponentGPGV)), out
}

type nopReader struct{}

func (*nopReader) Read(p []byte) (int, error) { return 0, nil }

type discardWriter struct{}

func (*discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestURIAcquireSingleGoodSignatureSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]byte("[GNUPG:] GOODSIG ABCD1234 Example Signer <sig@example.invalid>\n"), 0, nil)

	v := NewVerifierWithRunner(runner, config.DefaultStore(), logger.For(logger.ComponentGPGV))
	m, out := newRecordingMethod()

	item := acquire.FetchItem{URI: "file:///tmp/InRelease", Filename: "/tmp/InRelease"}
	require.NoError(t, v.URIAcquire(context.Background(), m, item))
	assert.Contains(t, out.String(), "201 URI Done")
	assert.Contains(t, out.String(), "Signed-By: ABCD1234\n")
	assert.NotContains(t, out.String(), "400 URI Failure")
}

func TestURIAcquireMixedGoodAndNoPubKeySucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]byte("[GNUPG:] GOODSIG AAAA OtherJunk\n[GNUPG:] NO_PUBKEY BBBB\n"), 0, nil)

	v := NewVerifierWithRunner(runner, config.DefaultStore(), logger.For(logger.ComponentGPGV))
	m, out := newRecordingMethod()

	item := acquire.FetchItem{URI: "file:///tmp/InRelease", Filename: "/tmp/InRelease"}
	require.NoError(t, v.URIAcquire(context.Background(), m, item))
	assert.Contains(t, out.String(), "201 URI Done")
	assert.Contains(t, out.String(), "Signed-By: AAAA\n")
	assert.Contains(t, out.String(), "Signed-By: NO_PUBKEY BBBB\n")
	assert.NotContains(t, out.String(), "400 URI Failure")
}

func TestURIAcquireBadSignatureFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]byte("[GNUPG:] BADSIG CCCC Forged Signer\n"), 1, nil)

	v := NewVerifierWithRunner(runner, config.DefaultStore(), logger.For(logger.ComponentGPGV))
	m, out := newRecordingMethod()

	item := acquire.FetchItem{URI: "file:///tmp/InRelease", Filename: "/tmp/InRelease"}
	require.NoError(t, v.URIAcquire(context.Background(), m, item))
	assert.Contains(t, out.String(), "400 URI Failure")
	assert.Contains(t, out.String(), "The following signatures were invalid")
	assert.Contains(t, out.String(), "CCCC")
	assert.NotContains(t, out.String(), "201 URI Done")
}

func TestURIAcquireNoDataExitCodeMapsToFixedMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]byte(""), 112, nil)

	v := NewVerifierWithRunner(runner, config.DefaultStore(), logger.For(logger.ComponentGPGV))
	m := newMethod()

	item := acquire.FetchItem{URI: "file:///tmp/InRelease", Filename: "/tmp/InRelease"}
	require.NoError(t, v.URIAcquire(context.Background(), m, item))
	assert.Equal(t, "Clearsigned file isn't valid, got 'NODATA' (does the network require authentication?)", exitMessage(112, false))
}

func TestExtractGoodSigKeyIDStopsAtFirstNonHexCharacter(t *testing.T) {
	assert.Equal(t, "AAAA", extractGoodSigKeyID("[GNUPG:] GOODSIG AAAA OtherJunk"))
	assert.Equal(t, "ABCDEF0123456789", extractGoodSigKeyID("[GNUPG:] GOODSIG ABCDEF0123456789 Real Name <x@example.invalid>"))
}

func TestClassifyLineRoutesEachPrefix(t *testing.T) {
	var s Signers
	classifyLine("[GNUPG:] BADSIG AAAA", &s)
	classifyLine("[GNUPG:] NO_PUBKEY BBBB", &s)
	classifyLine("[GNUPG:] NODATA", &s)
	classifyLine("[GNUPG:] KEYEXPIRED CCCC", &s)
	classifyLine("[GNUPG:] REVKEYSIG DDDD", &s)
	classifyLine("[GNUPG:] GOODSIG EEEE Name", &s)

	assert.Len(t, s.Bad, 2)
	assert.Len(t, s.NoPubKey, 1)
	assert.Len(t, s.Worthless, 2)
	assert.Equal(t, []string{"EEEE"}, s.Good)
}
