package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const ubuntuRelease = `PRETTY_NAME="Ubuntu 24.04.1 LTS"
NAME="Ubuntu"
VERSION_ID="24.04"
VERSION="24.04.1 LTS (Noble Numbat)"
ID=ubuntu
ID_LIKE=debian
HOME_URL="https://www.ubuntu.com/"
`

const fedoraRelease = `NAME="Fedora Linux"
VERSION="40 (Workstation Edition)"
ID=fedora
VERSION_ID=40
`

const mintRelease = `NAME="Linux Mint"
VERSION="22 (Wilma)"
ID=linuxmint
ID_LIKE="ubuntu debian"
VERSION_ID="22"
`

func TestParseOSRelease(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want OSInfo
		show string
	}{
		{
			name: "ubuntu",
			data: ubuntuRelease,
			want: OSInfo{ID: "ubuntu", IDLike: []string{"debian"}, Name: "Ubuntu", VersionID: "24.04"},
			show: Ubuntu,
		},
		{
			name: "fedora",
			data: fedoraRelease,
			want: OSInfo{ID: "fedora", Name: "Fedora Linux", VersionID: "40"},
			show: "Fedora Linux",
		},
		{
			name: "derivative_not_accepted",
			data: mintRelease,
			want: OSInfo{ID: "linuxmint", IDLike: []string{"ubuntu", "debian"}, Name: "Linux Mint", VersionID: "22"},
			show: "Linux Mint",
		},
		{
			name: "id_only",
			data: "ID=arch\n",
			want: OSInfo{ID: "arch"},
			show: "arch",
		},
		{
			name: "empty",
			data: "",
			want: OSInfo{},
			show: UnknownOS,
		},
		{
			name: "comments_and_junk",
			data: "# comment\n\nnot a pair\nID='ubuntu'\n",
			want: OSInfo{ID: "ubuntu"},
			show: Ubuntu,
		},
		{
			name: "escaped_quote",
			data: `NAME="Acme \"Edge\" OS"` + "\n",
			want: OSInfo{Name: `Acme "Edge" OS`},
			show: `Acme "Edge" OS`,
		},
		{
			name: "uppercase_id",
			data: "ID=Ubuntu\n",
			want: OSInfo{ID: "ubuntu"},
			show: Ubuntu,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseOSRelease([]byte(tc.data))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseOSRelease() = %+v, want %+v", got, tc.want)
			}
			if got.DisplayName() != tc.show {
				t.Errorf("DisplayName() = %q, want %q", got.DisplayName(), tc.show)
			}
		})
	}
}

func TestReleaseFileDetector(t *testing.T) {
	dir := t.TempDir()
	etc := filepath.Join(dir, "os-release")
	lib := filepath.Join(dir, "lib-os-release")
	missing := filepath.Join(dir, "missing")

	if err := os.WriteFile(lib, []byte(fedoraRelease), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("falls_back_to_second_path", func(t *testing.T) {
		info, err := ReleaseFileDetector{Paths: []string{etc, lib}}.DetectOS()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.DisplayName() != "Fedora Linux" {
			t.Errorf("DisplayName() = %q", info.DisplayName())
		}
	})

	t.Run("first_path_wins", func(t *testing.T) {
		if err := os.WriteFile(etc, []byte(ubuntuRelease), 0o644); err != nil {
			t.Fatal(err)
		}
		info, err := ReleaseFileDetector{Paths: []string{etc, lib}}.DetectOS()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.DisplayName() != Ubuntu {
			t.Errorf("DisplayName() = %q", info.DisplayName())
		}
	})

	t.Run("none_present_is_unknown", func(t *testing.T) {
		info, err := ReleaseFileDetector{Paths: []string{missing}}.DetectOS()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.DisplayName() != UnknownOS {
			t.Errorf("DisplayName() = %q", info.DisplayName())
		}
	})

	t.Run("directory_is_error", func(t *testing.T) {
		if _, err := (ReleaseFileDetector{Paths: []string{dir}}).DetectOS(); err == nil {
			t.Error("expected an error reading a directory")
		}
	})
}

func TestCheckOS(t *testing.T) {
	if err := CheckOS(Ubuntu); err != nil {
		t.Errorf("CheckOS(Ubuntu) = %v", err)
	}

	err := CheckOS("Fedora Linux")
	var ue *UnsupportedOSError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnsupportedOSError, got %v", err)
	}
	if err.Error() != "this tool requires Ubuntu, but detected: Fedora Linux" {
		t.Errorf("Error() = %q", err.Error())
	}
}
