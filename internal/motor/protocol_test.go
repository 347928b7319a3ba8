package motor

import "testing"

func TestEncodePacksFields(t *testing.T) {
	cases := []struct {
		flush bool
		cmd   Command
		dir   Direction
		want  byte
	}{
		{false, Push, Right, 0x00},
		{false, Push, Forward, 0x02},
		{true, Push, Left, 0x81},
		{false, Insert, Backward, 0x07},
		{true, Insert, Right, 0x84},
	}
	for _, c := range cases {
		got := Encode(c.flush, c.cmd, c.dir)
		if got != c.want {
			t.Errorf("Encode(%v, %v, %v) = %#02x, want %#02x", c.flush, c.cmd, c.dir, got, c.want)
		}
		if IsFlush(got) != c.flush {
			t.Errorf("IsFlush(%#02x) = %v, want %v", got, IsFlush(got), c.flush)
		}
		if Cmd(got) != c.cmd {
			t.Errorf("Cmd(%#02x) = %v, want %v", got, Cmd(got), c.cmd)
		}
		if Dir(got) != c.dir {
			t.Errorf("Dir(%#02x) = %v, want %v", got, Dir(got), c.dir)
		}
	}
}
