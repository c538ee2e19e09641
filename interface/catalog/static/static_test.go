package static

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/wrapped"
)

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	newProvider := wrapped.ProviderConstructor(TypeName, NewRemote)
	path := filepath.Join(t.TempDir(), "registry.json")

	if _, err := newProvider(ctx, map[string]string{wrapped.ParamPathToJSONFile: path}, datatype.Default()); err == nil {
		t.Error("expect missing data types")
	}

	params := map[string]string{wrapped.ParamPathToJSONFile: path, ParamDataTypes: "S2_L1C,S2_L2A"}
	p, err := newProvider(ctx, params, datatype.Default())
	if err != nil {
		t.Fatal(err)
	}
	if !p.ProvidesDataType(datatype.S2L2A) || p.ProvidesDataType(datatype.S1SLC) {
		t.Error("wrong provided data types")
	}

	entry := common.DataSetMetaInfo{StartTime: "2017-03-04", EndTime: "2017-03-04", DataType: datatype.S2L1C, Identifier: "/data/S2_L1C/a"}
	updateable := p.(datastore.UpdateableMetaInfoProvider)
	if err := updateable.Update(ctx, entry); err != nil {
		t.Fatal(err)
	}
	q := query.MustParse(";2017;2017;S2_L1C")
	if all, err := p.Query(ctx, q); err != nil || !reflect.DeepEqual(all, []common.DataSetMetaInfo{entry}) {
		t.Errorf("expect [%v] found %v (%v)", entry, all, err)
	}
	if nonLocal, _ := p.QueryNonLocal(ctx, q); len(nonLocal) != 0 {
		t.Errorf("expect no remote entries found %v", nonLocal)
	}
	if !reflect.DeepEqual(p.Descriptor(), common.Descriptor{Type: TypeName, Parameters: params}) {
		t.Errorf("wrong descriptor %v", p.Descriptor())
	}
}
