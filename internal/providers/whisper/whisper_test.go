package whisper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWhisper writes "$stem.txt" (or "$name.txt" with NAMED=1) into the
// --output_dir it is given and records its arguments.
const fakeWhisper = `#!/usr/bin/env bash
echo "$@" > "$ARGS_FILE"
in="$1"; shift
while [ $# -gt 0 ]; do
  case "$1" in
    --output_dir) out="$2"; shift 2;;
    *) shift;;
  esac
done
name=$(basename "$in")
if [ "$NAMED" = "1" ]; then target="$out/$name.txt"; else target="$out/${name%.*}.txt"; fi
printf '  hello from whisper \n' > "$target"
`

func TestTranscriberReadsOutput(t *testing.T) {
	script, argsFile := writeFake(t, fakeWhisper)
	t.Setenv("ARGS_FILE", argsFile)

	transcriber := NewTranscriber(Config{Command: script, Model: "base", Language: "en", Args: []string{"--fp16", "False"}})
	text, err := transcriber.Transcribe(context.Background(), "/tmp/recording_1.wav")
	require.NoError(t, err)
	assert.Equal(t, "hello from whisper", text)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(args), "/tmp/recording_1.wav --model base --language en --output_format txt --output_dir "))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(args)), "--fp16 False"))
}

func TestTranscriberAcceptsFullNameOutput(t *testing.T) {
	script, argsFile := writeFake(t, fakeWhisper)
	t.Setenv("ARGS_FILE", argsFile)
	t.Setenv("NAMED", "1")

	text, err := NewTranscriber(Config{Command: script}).Transcribe(context.Background(), "/tmp/recording_1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "hello from whisper", text)
}

func TestTranscriberFailure(t *testing.T) {
	t.Parallel()

	script, _ := writeFake(t, "#!/usr/bin/env bash\necho 'model not found' 1>&2\nexit 2\n")
	_, err := NewTranscriber(Config{Command: script}).Transcribe(context.Background(), "/tmp/x.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestTranscriberMissingOutput(t *testing.T) {
	t.Parallel()

	script, _ := writeFake(t, "#!/usr/bin/env bash\necho done\n")
	_, err := NewTranscriber(Config{Command: script}).Transcribe(context.Background(), "/tmp/x.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not produce a transcript")
}

func writeFake(t *testing.T, contents string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "whisper")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o755))
	return path, filepath.Join(dir, "args")
}
