package avro

import "testing"

func TestAddedFieldWithDefault(t *testing.T) {
	c := NewChecker()
	writer := `{"type":"record","name":"User","fields":[{"name":"id","type":"int"}]}`
	reader := `{"type":"record","name":"User","fields":[
		{"name":"id","type":"int"},
		{"name":"email","type":"string","default":""}]}`

	if r := c.Check(reader, writer); !r.IsCompatible {
		t.Errorf("a reader field with a default must be compatible: %v", r.Messages)
	}
}

func TestAddedFieldWithoutDefault(t *testing.T) {
	c := NewChecker()
	writer := `{"type":"record","name":"User","fields":[{"name":"id","type":"int"}]}`
	reader := `{"type":"record","name":"User","fields":[
		{"name":"id","type":"int"},
		{"name":"email","type":"string"}]}`

	if r := c.Check(reader, writer); r.IsCompatible {
		t.Error("a reader field without a default must be incompatible")
	}
}

func TestNumericPromotion(t *testing.T) {
	c := NewChecker()
	writer := `{"type":"record","name":"M","fields":[{"name":"v","type":"int"}]}`
	reader := `{"type":"record","name":"M","fields":[{"name":"v","type":"long"}]}`

	if r := c.Check(reader, writer); !r.IsCompatible {
		t.Errorf("int must promote to long: %v", r.Messages)
	}
	// the reverse narrows and must fail
	if r := c.Check(writer, reader); r.IsCompatible {
		t.Error("long must not narrow to int")
	}
}

func TestStringBytesInterchange(t *testing.T) {
	c := NewChecker()
	writer := `{"type":"record","name":"M","fields":[{"name":"v","type":"string"}]}`
	reader := `{"type":"record","name":"M","fields":[{"name":"v","type":"bytes"}]}`

	if r := c.Check(reader, writer); !r.IsCompatible {
		t.Errorf("string and bytes interchange: %v", r.Messages)
	}
}

func TestReaderUnionAcceptsWriterType(t *testing.T) {
	c := NewChecker()
	writer := `{"type":"record","name":"M","fields":[{"name":"v","type":"string"}]}`
	reader := `{"type":"record","name":"M","fields":[{"name":"v","type":["null","string"]}]}`

	if r := c.Check(reader, writer); !r.IsCompatible {
		t.Errorf("a reader union containing the writer type must match: %v", r.Messages)
	}
}

func TestWriterUnionNeedsEveryBranchReadable(t *testing.T) {
	c := NewChecker()
	writer := `{"type":"record","name":"M","fields":[{"name":"v","type":["null","string"]}]}`
	reader := `{"type":"record","name":"M","fields":[{"name":"v","type":"string"}]}`

	if r := c.Check(reader, writer); r.IsCompatible {
		t.Error("a writer union with an unreadable branch must fail")
	}
}

func TestRecordNameMismatch(t *testing.T) {
	c := NewChecker()
	writer := `{"type":"record","name":"A","fields":[]}`
	reader := `{"type":"record","name":"B","fields":[]}`

	if r := c.Check(reader, writer); r.IsCompatible {
		t.Error("mismatched record names must fail")
	}
}

func TestRecordAliasMatches(t *testing.T) {
	c := NewChecker()
	writer := `{"type":"record","name":"A","fields":[]}`
	reader := `{"type":"record","name":"B","aliases":["A"],"fields":[]}`

	if r := c.Check(reader, writer); !r.IsCompatible {
		t.Errorf("a reader alias must match the writer name: %v", r.Messages)
	}
}

func TestEnumSymbolRemoved(t *testing.T) {
	c := NewChecker()
	writer := `{"type":"enum","name":"Color","symbols":["RED","GREEN","BLUE"]}`
	reader := `{"type":"enum","name":"Color","symbols":["RED","GREEN"]}`

	if r := c.Check(reader, writer); r.IsCompatible {
		t.Error("an unknown writer symbol with no reader default must fail")
	}

	withDefault := `{"type":"enum","name":"Color","symbols":["RED","GREEN"],"default":"RED"}`
	if r := c.Check(withDefault, writer); !r.IsCompatible {
		t.Errorf("a reader enum default must absorb unknown symbols: %v", r.Messages)
	}
}

func TestInvalidSchemas(t *testing.T) {
	c := NewChecker()
	valid := `{"type":"record","name":"M","fields":[]}`

	if r := c.Check("not json", valid); r.IsCompatible {
		t.Error("an invalid reader must fail")
	}
	if r := c.Check(valid, "not json"); r.IsCompatible {
		t.Error("an invalid writer must fail")
	}
}
